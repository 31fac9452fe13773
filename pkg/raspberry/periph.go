package raspberry

import (
	"fmt"
	"time"

	"dht11/pkg/port"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPin is a line driven by the periph.io host drivers.
// WaitForEdge misses the short DHT11 pulses, so the line is polled.
type PeriphPin struct {
	pin gpio.PinIO
	dir port.Direction
	out port.Level
}

type PeriphGPIO struct {
	pins map[int]*PeriphPin
}

// openPeriph initializes the periph.io host drivers.
func openPeriph() (GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "init periph host")
	}
	return &PeriphGPIO{pins: map[int]*PeriphPin{}}, nil
}

// NewPin looks up GPIOp and drives it high.
func (c *PeriphGPIO) NewPin(p int) (port.Pin, error) {
	if _, ok := c.pins[p]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPinUsed, p)
	}

	name := fmt.Sprintf("GPIO%d", p)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: unknown pin %s", ErrInvalidParam, name)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, errors.Wrapf(err, "%s out high", name)
	}

	c.pins[p] = &PeriphPin{pin: pin, dir: port.Output, out: port.High}
	return c.pins[p], nil
}

// Close releases the pins back to inputs.
func (c *PeriphGPIO) Close() error {
	for _, p := range c.pins {
		_ = p.pin.In(gpio.PullUp, gpio.NoEdge)
	}
	c.pins = map[int]*PeriphPin{}
	return nil
}

func (p *PeriphPin) SetDirection(dir port.Direction) error {
	var err error

	switch dir {
	case port.Input:
		err = p.pin.In(gpio.PullUp, gpio.NoEdge)
		p.out = port.High
	case port.Output:
		err = p.pin.Out(gpio.Level(p.out))
	default:
		return ErrInvalidParam
	}

	if err != nil {
		return errors.Wrapf(err, "%s as %v", p.pin, dir)
	}
	p.dir = dir
	return nil
}

func (p *PeriphPin) SetLevel(l port.Level) error {
	if p.dir != port.Output {
		return fmt.Errorf("%w: %s", ErrDirection, p.pin)
	}

	p.out = l
	return errors.Wrapf(p.pin.Out(gpio.Level(l)), "%s out %v", p.pin, l)
}

func (p *PeriphPin) Read() (port.Level, error) {
	return port.Level(p.pin.Read()), nil
}

func (p *PeriphPin) Delay(d time.Duration) {
	port.Delay(d)
}
