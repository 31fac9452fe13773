//go:build linux

package raspberry

import (
	"fmt"
	"time"

	"dht11/pkg/port"

	"github.com/pkg/errors"
	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
	"golang.org/x/sys/unix"
)

// eventBuffer holds more edges than a complete transaction produces.
const eventBuffer = 128

// Chip represents a single GPIO chip that controls a set of lines.
type Chip struct {
	gpiodChip *gpiod.Chip
	lines     map[int]*Line
}

// Line represents a single requested line.
// As an input the line watches both edges, WaitForLevel consumes them from channel C.
type Line struct {
	chip      *gpiod.Chip
	offset    int
	gpiodLine *gpiod.Line

	dir port.Direction
	// out is the level driven while the line is an output.
	out port.Level
	// level is the level after the last consumed edge.
	level port.Level
	// lastEvent is the kernel timestamp of the last consumed edge or the release of the line, -1 for outputs.
	lastEvent time.Duration

	timer *time.Timer
	// send edge changes to channel
	C chan port.Event
}

// openGpiod opens a GPIO character device.
func openGpiod(name string) (GPIO, error) {
	c, err := gpiod.NewChip(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open chip %s", name)
	}
	return &Chip{gpiodChip: c, lines: map[int]*Line{}}, nil
}

// NewPin requests control of a single line on a chip.
// If granted, control is maintained until the Chip is closed.
func (c *Chip) NewPin(offset int) (port.Pin, error) {
	if _, ok := c.lines[offset]; ok {
		return nil, fmt.Errorf("%w: %v", ErrPinUsed, offset)
	}

	t := time.NewTimer(time.Hour)
	t.Stop()

	l := &Line{
		chip:   c.gpiodChip,
		offset: offset,
		dir:    port.Input,
		out:    port.High,
		timer:  t,
		C:      make(chan port.Event, eventBuffer),
	}
	if err := l.request(port.Output); err != nil {
		return nil, err
	}

	c.lines[offset] = l
	return l, nil
}

// Close releases all lines and the chip.
func (c *Chip) Close() error {
	for o, l := range c.lines {
		if err := l.Close(); err != nil {
			debug.ErrorLog.Printf("close line %v: %v", o, err)
		}
	}
	c.lines = map[int]*Line{}
	return c.gpiodChip.Close()
}

// request re-requests the line in the given direction.
// The kernel can't watch edges of an output, so the direction is changed by a new request.
func (l *Line) request(dir port.Direction) error {
	// the release of the line is the reference of the first edge
	released := monotonic()

	if l.gpiodLine != nil {
		if err := l.gpiodLine.Close(); err != nil {
			return errors.Wrapf(err, "release line %d", l.offset)
		}
		l.gpiodLine = nil
	}

	var err error
	switch dir {
	case port.Output:
		l.gpiodLine, err = l.chip.RequestLine(l.offset, gpiod.AsOutput(value(l.out)))
		l.level = l.out
	case port.Input:
		l.out = port.High
		l.drain()
		l.gpiodLine, err = l.chip.RequestLine(l.offset, gpiod.WithEventHandler(l.handler),
			gpiod.WithBothEdges, gpiod.AsInput, gpiod.WithPullUp)
		if err == nil {
			var v int
			v, err = l.gpiodLine.Value()
			l.level = v == 1
		}
	default:
		return ErrInvalidParam
	}

	if err != nil {
		return errors.Wrapf(err, "request line %d as %v", l.offset, dir)
	}

	l.dir = dir
	l.lastEvent = -1
	if dir == port.Input {
		l.lastEvent = released
	}
	return nil
}

// handler forwards the edges of the line to channel C
func (l *Line) handler(evt gpiod.LineEvent) {
	e := port.Event{Timestamp: evt.Timestamp}

	switch evt.Type {
	case gpiod.LineEventRisingEdge:
		e.Type = port.RisingEdge
	case gpiod.LineEventFallingEdge:
		e.Type = port.FallingEdge
	default:
		return
	}

	select {
	case l.C <- e:
	default:
		debug.ErrorLog.Println("edge buffer full, event dropped")
	}
}

// drain drops edges left over from the last transaction.
func (l *Line) drain() {
	for {
		select {
		case <-l.C:
		default:
			return
		}
	}
}

func (l *Line) SetDirection(dir port.Direction) error {
	if dir == l.dir {
		return nil
	}
	return l.request(dir)
}

func (l *Line) SetLevel(level port.Level) error {
	if l.dir != port.Output {
		return fmt.Errorf("%w: %v", ErrDirection, l.offset)
	}

	l.out = level
	l.level = level
	return errors.Wrapf(l.gpiodLine.SetValue(value(level)), "set line %d", l.offset)
}

func (l *Line) Read() (port.Level, error) {
	v, err := l.gpiodLine.Value()
	if err != nil {
		return port.Low, errors.Wrapf(err, "read line %d", l.offset)
	}
	return v == 1, nil
}

func (l *Line) Delay(d time.Duration) {
	port.Delay(d)
}

// WaitForLevel consumes edges until the line is at target.
// The returned duration is the kernel measured time between the last two edges,
// i.e. how long the line stayed at the previous level.
func (l *Line) WaitForLevel(target port.Level, timeout time.Duration) (time.Duration, error) {
	if l.level == target {
		return 0, nil
	}

	if !l.timer.Stop() {
		select {
		case <-l.timer.C:
		default:
		}
	}
	l.timer.Reset(timeout)

	for {
		select {
		case evt := <-l.C:
			var d time.Duration
			if l.lastEvent >= 0 {
				d = evt.Timestamp - l.lastEvent
			}
			l.lastEvent = evt.Timestamp
			l.level = evt.Type.Level()

			if l.level == target {
				return d, nil
			}
		case <-l.timer.C:
			return timeout, port.ErrTimeout
		}
	}
}

// Close releases all resources held by the requested line.
//
// Note that this includes waiting for any running event handler to return.
func (l *Line) Close() error {
	if l.gpiodLine == nil {
		return nil
	}

	err := l.gpiodLine.Close()
	l.gpiodLine = nil
	return errors.Wrapf(err, "close line %d", l.offset)
}

// monotonic returns CLOCK_MONOTONIC, the clock the kernel stamps line events with.
func monotonic() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return -1
	}
	return time.Duration(ts.Nano())
}

func value(l port.Level) int {
	if l {
		return 1
	}
	return 0
}
