// Package raspberry provides the gpio backends a sensor line can be driven with.
//
//	gpiod    character device /dev/gpiochipN, edges are timestamped by the kernel
//	gpiomem  memory mapped registers (/dev/gpiomem), the line is polled
//	periph   periph.io host drivers, the line is polled
//	emulator a simulated sensor, for machines without gpio
package raspberry

import (
	"errors"
	"fmt"

	"dht11/pkg/port"
	"dht11/pkg/sim"
)

const (
	DriverGpiod    = "gpiod"
	DriverGpiomem  = "gpiomem"
	DriverPeriph   = "periph"
	DriverEmulator = "emulator"
)

var (
	ErrInvalidParam = errors.New("invalid parameters")
	ErrPinUsed      = errors.New("pin already used")
	ErrUnsupported  = errors.New("driver not supported on this platform")
	ErrDirection    = errors.New("line is not an output")
)

// GPIO hands out the lines of one gpio controller.
type GPIO interface {
	// NewPin requests the line with the BCM number p, idle as output high.
	// Each line can be requested once.
	NewPin(p int) (port.Pin, error)
	// Close releases all requested lines and the controller.
	Close() error
}

// Open opens the gpio controller of the hardware driver.
// chip is only used by the gpiod driver.
func Open(driver, chip string) (GPIO, error) {
	switch driver {
	case DriverGpiod:
		return openGpiod(chip)
	case DriverGpiomem:
		return openGpiomem()
	case DriverPeriph:
		return openPeriph()
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidParam, driver)
	}
}

// Emulator is a gpio controller with a simulated sensor on every line.
type Emulator struct {
	frame [5]byte
	pins  map[int]*sim.EdgePin
}

// OpenEmulator attaches sensors answering with frame.
func OpenEmulator(frame [5]byte) *Emulator {
	return &Emulator{frame: frame, pins: map[int]*sim.EdgePin{}}
}

// NewPin creates a new emulated line.
func (e *Emulator) NewPin(p int) (port.Pin, error) {
	if _, ok := e.pins[p]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPinUsed, p)
	}

	e.pins[p] = sim.NewEdgePin(sim.Train(e.frame))
	return e.pins[p], nil
}

func (e *Emulator) Close() error {
	e.pins = map[int]*sim.EdgePin{}
	return nil
}
