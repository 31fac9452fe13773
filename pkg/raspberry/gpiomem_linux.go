//go:build linux

package raspberry

import (
	"fmt"
	"time"

	"dht11/pkg/port"

	"github.com/pkg/errors"
	"github.com/warthog618/gpio"
)

// memLine is the part of *gpio.Pin a MemPin drives.
type memLine interface {
	Input()
	Output()
	PullUp()
	High()
	Low()
	Write(gpio.Level)
	Read() gpio.Level
	Pin() int
}

// MemPin is a line driven through the memory mapped gpio registers.
type MemPin struct {
	gpioPin memLine
	dir     port.Direction
	out     port.Level
}

type MemGPIO struct {
	pins map[int]*MemPin
}

// openGpiomem maps the GPIO memory range from /dev/gpiomem.
func openGpiomem() (GPIO, error) {
	if err := gpio.Open(); err != nil {
		return nil, errors.Wrap(err, "open gpiomem")
	}
	return &MemGPIO{pins: map[int]*MemPin{}}, nil
}

// Close unmaps GPIO memory
func (c *MemGPIO) Close() error {
	for _, p := range c.pins {
		p.gpioPin.Input()
	}
	c.pins = map[int]*MemPin{}
	return gpio.Close()
}

// NewPin creates a new pin object.
// The pin number provided is the BCM GPIO number.
func (c *MemGPIO) NewPin(p int) (port.Pin, error) {
	if _, ok := c.pins[p]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPinUsed, p)
	}

	l := &MemPin{gpioPin: gpio.NewPin(p), dir: port.Output, out: port.High}
	l.gpioPin.High()
	l.gpioPin.Output()

	c.pins[p] = l
	return l, nil
}

func (p *MemPin) SetDirection(dir port.Direction) error {
	switch dir {
	case port.Input:
		p.gpioPin.Input()
		p.gpioPin.PullUp()
		// a reclaimed line starts at the pulled up level
		p.out = port.High
	case port.Output:
		// latch the level before enabling the driver
		p.gpioPin.Write(gpio.Level(p.out))
		p.gpioPin.Output()
	default:
		return ErrInvalidParam
	}

	p.dir = dir
	return nil
}

func (p *MemPin) SetLevel(l port.Level) error {
	if p.dir != port.Output {
		return fmt.Errorf("%w: %v", ErrDirection, p.gpioPin.Pin())
	}

	if l == port.High {
		p.gpioPin.High()
	} else {
		p.gpioPin.Low()
	}
	p.out = l
	return nil
}

// Read pin state (high/low)
func (p *MemPin) Read() (port.Level, error) {
	return port.Level(p.gpioPin.Read()), nil
}

func (p *MemPin) Delay(d time.Duration) {
	port.Delay(d)
}
