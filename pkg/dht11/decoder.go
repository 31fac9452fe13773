// Package dht11 is the decoder of the DHT11 single wire protocol.
//
// A transaction consists of
//   - the host start signal: the line is held low for at least 18ms and released,
//   - the sensor acknowledgment: 80µs low followed by 80µs high,
//   - 40 data bits (MSB first): 50µs low followed by 27µs high for a 0 or 70µs high for a 1,
//   - the checksum: the fifth byte is the low byte of the sum of the four data bytes.
package dht11

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"dht11/pkg/port"

	"github.com/womat/debug"
)

// Clock is the monotonic time source all waits are bounded by.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Decoder reads the sensor connected to pin.
// The decoder must be the only user of the pin.
type Decoder struct {
	// rl serializes transactions on the pin.
	rl  sync.Mutex
	pin port.Pin

	clock Clock
	// waiter is set if the pin can block on edges, otherwise the line is polled.
	waiter port.LevelWaiter

	startHold    time.Duration
	ackTimeout   time.Duration
	levelTimeout time.Duration
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock replaces the system clock used to bound polling waits.
func WithClock(c Clock) Option {
	return func(d *Decoder) { d.clock = c }
}

// WithStartHold sets how long the host start signal is held low.
func WithStartHold(t time.Duration) Option {
	return func(d *Decoder) { d.startHold = t }
}

// WithAckTimeout sets how long to wait for the sensor after the start signal.
func WithAckTimeout(t time.Duration) Option {
	return func(d *Decoder) { d.ackTimeout = t }
}

// WithLevelTimeout sets the longest accepted phase of a single pulse.
func WithLevelTimeout(t time.Duration) Option {
	return func(d *Decoder) { d.levelTimeout = t }
}

// New creates a decoder owning pin.
// If pin implements port.LevelWaiter, waits block on edges instead of polling.
func New(pin port.Pin, opts ...Option) (*Decoder, error) {
	if pin == nil {
		return nil, fmt.Errorf("%w: pin is nil", ErrInvalidParam)
	}

	d := &Decoder{
		pin:          pin,
		clock:        systemClock{},
		startHold:    MinStartHold,
		ackTimeout:   defaultAckTimeout,
		levelTimeout: defaultLevelTimeout,
	}
	for _, o := range opts {
		o(d)
	}

	if d.startHold < MinStartHold {
		return nil, fmt.Errorf("%w: start hold %v is shorter than %v", ErrInvalidParam, d.startHold, MinStartHold)
	}
	if d.ackTimeout <= 0 || d.levelTimeout <= 0 {
		return nil, fmt.Errorf("%w: timeouts must be positive", ErrInvalidParam)
	}
	if d.clock == nil {
		return nil, fmt.Errorf("%w: clock is nil", ErrInvalidParam)
	}

	if w, ok := pin.(port.LevelWaiter); ok {
		d.waiter = w
	}

	return d, nil
}

// Read runs one complete transaction and returns the validated measurement.
// On error the pin is left in an undefined state, call Idle before retrying.
func Read(pin port.Pin, opts ...Option) (Measurement, error) {
	d, err := New(pin, opts...)
	if err != nil {
		return Measurement{}, err
	}
	return d.Read()
}

// Read runs one complete transaction: start signal, acknowledgment, 40 data bits and checksum.
// Any failure ends the transaction, there is no internal retry.
func (d *Decoder) Read() (Measurement, error) {
	d.rl.Lock()
	defer d.rl.Unlock()

	m, err := d.read()
	if err != nil {
		debug.TraceLog.Printf("dht11 read: %v", err)
		return Measurement{}, err
	}

	debug.TraceLog.Printf("dht11 read: %v", m)
	return m, nil
}

func (d *Decoder) read() (Measurement, error) {
	if err := d.begin(); err != nil {
		return Measurement{}, err
	}
	if err := d.acknowledge(); err != nil {
		return Measurement{}, err
	}

	b, err := d.sample()
	if err != nil {
		return Measurement{}, err
	}

	return Validate(b)
}

// Idle releases the line to output high, the state the sensor expects between transactions.
func (d *Decoder) Idle() error {
	d.rl.Lock()
	defer d.rl.Unlock()
	return Idle(d.pin)
}

// Idle drives pin high as output.
func Idle(pin port.Pin) error {
	if err := pin.SetDirection(port.Output); err != nil {
		return fmt.Errorf("%w: %w", ErrPinFault, err)
	}
	if err := pin.SetLevel(port.High); err != nil {
		return fmt.Errorf("%w: %w", ErrPinFault, err)
	}
	return nil
}

// BeginTransaction sends the host start signal and waits for the sensor to pull the line low.
// On success the pin is an input positioned at the start of the acknowledgment low phase.
func (d *Decoder) BeginTransaction() error {
	d.rl.Lock()
	defer d.rl.Unlock()
	return d.begin()
}

func (d *Decoder) begin() error {
	if err := d.pin.SetDirection(port.Output); err != nil {
		return pinFault(PhaseStart, -1, err)
	}
	if err := d.pin.SetLevel(port.Low); err != nil {
		return pinFault(PhaseStart, -1, err)
	}

	d.pin.Delay(d.startHold)

	if err := d.pin.SetDirection(port.Input); err != nil {
		return pinFault(PhaseStart, -1, err)
	}

	if _, err := d.waitForLevel(port.Low, d.ackTimeout); err != nil {
		return d.timeoutError(ErrAckTimeout, PhaseStart, -1, err)
	}
	return nil
}

// acknowledge measures both phases of the acknowledgment pulse.
func (d *Decoder) acknowledge() error {
	low, err := d.waitForLevel(port.High, d.levelTimeout)
	if err != nil {
		return d.timeoutError(ErrAckTimeout, PhaseAck, -1, err)
	}
	if !within(low, AckLow) {
		return &ProtocolError{Kind: ErrAckPulseOutOfRange, Phase: PhaseAck, Bit: -1, Duration: low}
	}

	high, err := d.waitForLevel(port.Low, d.levelTimeout)
	if err != nil {
		return d.timeoutError(ErrAckTimeout, PhaseAck, -1, err)
	}
	if !within(high, AckHigh) {
		return &ProtocolError{Kind: ErrAckPulseOutOfRange, Phase: PhaseAck, Bit: -1, Duration: high}
	}

	return nil
}

// SampleBits decodes the 40 data bits following the acknowledgment, MSB first.
// The low phase preceding each bit must be BitLow long, the high phase carries the bit.
// It must be called right after the acknowledgment high phase ended.
func (d *Decoder) SampleBits() ([5]byte, error) {
	d.rl.Lock()
	defer d.rl.Unlock()
	return d.sample()
}

func (d *Decoder) sample() ([5]byte, error) {
	var b [5]byte

	for i := 0; i < DataBits; i++ {
		low, err := d.waitForLevel(port.High, d.levelTimeout)
		if err != nil {
			return b, d.timeoutError(ErrLevelTimeout, PhaseData, i, err)
		}
		if !within(low, BitLow) {
			return b, &ProtocolError{Kind: ErrBitOutOfRange, Phase: PhaseData, Bit: i, Duration: low}
		}

		high, err := d.waitForLevel(port.Low, d.levelTimeout)
		if err != nil {
			return b, d.timeoutError(ErrLevelTimeout, PhaseData, i, err)
		}

		bit, ok := classify(high)
		if !ok {
			return b, &ProtocolError{Kind: ErrBitOutOfRange, Phase: PhaseData, Bit: i, Duration: high}
		}

		b[i/8] = b[i/8]<<1 | bit
	}

	return b, nil
}

// WaitForLevel waits until the line is at target and returns how long that took.
// It fails with ErrLevelTimeout if maxWait elapses first.
func (d *Decoder) WaitForLevel(target port.Level, maxWait time.Duration) (time.Duration, error) {
	d.rl.Lock()
	defer d.rl.Unlock()

	t, err := d.waitForLevel(target, maxWait)
	if err != nil {
		return t, d.timeoutError(ErrLevelTimeout, PhaseData, -1, err)
	}
	return t, nil
}

// waitForLevel returns port.ErrTimeout or the pin error unchanged.
func (d *Decoder) waitForLevel(target port.Level, maxWait time.Duration) (time.Duration, error) {
	if d.waiter != nil {
		return d.waiter.WaitForLevel(target, maxWait)
	}

	start := d.clock.Now()
	for {
		l, err := d.pin.Read()
		if err != nil {
			return 0, err
		}

		elapsed := d.clock.Now().Sub(start)
		if l == target {
			return elapsed, nil
		}
		if elapsed >= maxWait {
			return elapsed, port.ErrTimeout
		}
	}
}

// timeoutError classifies the error of a wait: timeouts become kind, anything else is a pin fault.
func (d *Decoder) timeoutError(kind error, phase Phase, bit int, err error) error {
	if errors.Is(err, port.ErrTimeout) {
		return &ProtocolError{Kind: kind, Phase: phase, Bit: bit}
	}
	return pinFault(phase, bit, err)
}
