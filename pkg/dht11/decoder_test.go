package dht11

import (
	"errors"
	"strings"
	"testing"
	"time"

	"dht11/pkg/port"
	"dht11/pkg/sim"
)

// reference frame: humidity 50.0%, temperature 27.0°C
var reference = [5]byte{0x32, 0x00, 0x1B, 0x00, 0x4D}

// pins returns a polled and an edge triggered line replaying train.
func pins(train []sim.Pulse) map[string]func() (port.Pin, *sim.Pin) {
	return map[string]func() (port.Pin, *sim.Pin){
		"polling": func() (port.Pin, *sim.Pin) {
			p := sim.NewPin(train)
			return p, p
		},
		"edge": func() (port.Pin, *sim.Pin) {
			p := sim.NewEdgePin(train)
			return p, p.Pin
		},
	}
}

func newDecoder(t *testing.T, pin port.Pin, clock *sim.Pin, opts ...Option) *Decoder {
	t.Helper()

	d, err := New(pin, append([]Option{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return d
}

func TestReadReference(t *testing.T) {
	if sim.Frame(50, 0, 27, 0) != reference {
		t.Fatalf("sim.Frame(50, 0, 27, 0) = % X, want % X", sim.Frame(50, 0, 27, 0), reference)
	}

	for name, open := range pins(sim.Train(reference)) {
		t.Run(name, func(t *testing.T) {
			pin, clock := open()
			m, err := newDecoder(t, pin, clock).Read()
			if err != nil {
				t.Fatalf("Read() unexpected error: %v", err)
			}

			if m.HumidityInt() != 50 || m.HumidityFrac() != 0 || m.TemperatureInt() != 27 || m.TemperatureFrac() != 0 {
				t.Errorf("Read() = %v, want humidity 50.0, temperature 27.0", m)
			}
		})
	}
}

func TestReadAllBits(t *testing.T) {
	frames := [][5]byte{
		sim.Frame(0, 0, 0, 0),
		sim.Frame(0xFF, 0xFF, 0xFF, 0xFF),
		sim.Frame(0xAA, 0x55, 0x0F, 0xF0),
		sim.Frame(95, 9, 50, 1),
	}

	for name := range pins(nil) {
		for _, f := range frames {
			pin, clock := pins(sim.Train(f))[name]()
			m, err := newDecoder(t, pin, clock).Read()
			if err != nil {
				t.Fatalf("%s: Read(% X) unexpected error: %v", name, f, err)
			}
			got := [4]byte{m.HumidityInt(), m.HumidityFrac(), m.TemperatureInt(), m.TemperatureFrac()}
			if got != [4]byte{f[0], f[1], f[2], f[3]} {
				t.Errorf("%s: Read(% X) = % X", name, f, got)
			}
		}
	}
}

func TestReadChecksumMismatch(t *testing.T) {
	corrupted := reference
	corrupted[4] = 0x00

	for name, open := range pins(sim.Train(corrupted)) {
		t.Run(name, func(t *testing.T) {
			pin, clock := open()
			_, err := newDecoder(t, pin, clock).Read()

			var ce *ChecksumError
			if !errors.As(err, &ce) {
				t.Fatalf("Read() error = %v, want *ChecksumError", err)
			}
			if ce.Computed != 0x4D || ce.Received != 0x00 {
				t.Errorf("ChecksumError = {0x%02X 0x%02X}, want {0x4D 0x00}", ce.Computed, ce.Received)
			}
			if !errors.Is(err, ErrChecksumMismatch) {
				t.Errorf("errors.Is(%v, ErrChecksumMismatch) = false", err)
			}
		})
	}
}

func TestReadIdempotent(t *testing.T) {
	for name, open := range pins(sim.Train(reference)) {
		t.Run(name, func(t *testing.T) {
			pin, clock := open()
			d := newDecoder(t, pin, clock)

			first, err := d.Read()
			if err != nil {
				t.Fatalf("first Read() unexpected error: %v", err)
			}
			second, err := d.Read()
			if err != nil {
				t.Fatalf("second Read() unexpected error: %v", err)
			}

			if first != second {
				t.Errorf("Read() = %v then %v", first, second)
			}
			if clock.Transactions != 2 {
				t.Errorf("sensor answered %d start signals, want 2", clock.Transactions)
			}
		})
	}
}

func TestAckTimeout(t *testing.T) {
	const bound = 500 * time.Microsecond

	for name, open := range pins(nil) {
		t.Run(name, func(t *testing.T) {
			pin, clock := open()
			d := newDecoder(t, pin, clock, WithAckTimeout(bound))

			start := clock.Elapsed()
			err := d.BeginTransaction()
			if !errors.Is(err, ErrAckTimeout) {
				t.Fatalf("BeginTransaction() error = %v, want %v", err, ErrAckTimeout)
			}

			waited := clock.Elapsed() - start - MinStartHold
			if waited < bound || waited > bound+sim.DefaultStep {
				t.Errorf("waited %v for the acknowledgment, want %v", waited, bound)
			}
		})
	}
}

func TestShortStartSignalIsRejected(t *testing.T) {
	_, err := New(sim.NewPin(sim.Train(reference)), WithStartHold(10*time.Millisecond))
	if !errors.Is(err, ErrInvalidParam) {
		t.Errorf("New() error = %v, want %v", err, ErrInvalidParam)
	}
}

func TestNewInvalidParams(t *testing.T) {
	tests := []struct {
		name string
		pin  port.Pin
		opts []Option
	}{
		{name: "nil pin"},
		{name: "zero ack timeout", pin: sim.NewPin(nil), opts: []Option{WithAckTimeout(0)}},
		{name: "zero level timeout", pin: sim.NewPin(nil), opts: []Option{WithLevelTimeout(0)}},
		{name: "nil clock", pin: sim.NewPin(nil), opts: []Option{WithClock(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.pin, tt.opts...); !errors.Is(err, ErrInvalidParam) {
				t.Errorf("New() error = %v, want %v", err, ErrInvalidParam)
			}
		})
	}
}

func TestAckPulseOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		pulse int
		d     time.Duration
	}{
		{name: "low too long", pulse: 1, d: 95 * time.Microsecond},
		{name: "low too short", pulse: 1, d: 60 * time.Microsecond},
		{name: "high too long", pulse: 2, d: 100 * time.Microsecond},
	}

	for _, tt := range tests {
		train := sim.Train(reference)
		train[tt.pulse].Duration = tt.d

		for name, open := range pins(train) {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				pin, clock := open()
				_, err := newDecoder(t, pin, clock).Read()
				if !errors.Is(err, ErrAckPulseOutOfRange) {
					t.Fatalf("Read() error = %v, want %v", err, ErrAckPulseOutOfRange)
				}
				if errors.Is(err, ErrAckTimeout) {
					t.Errorf("out of range pulse must not be reported as timeout: %v", err)
				}

				var pe *ProtocolError
				if !errors.As(err, &pe) {
					t.Fatalf("Read() error %T is no *ProtocolError", err)
				}
				if pe.Phase != PhaseAck || pe.Duration != tt.d {
					t.Errorf("ProtocolError phase %v duration %v, want ack %v", pe.Phase, pe.Duration, tt.d)
				}
			})
		}
	}
}

func TestBitOutOfRange(t *testing.T) {
	train := sim.Train(reference)
	train[sim.BitPulse(5)].Duration = 48 * time.Microsecond

	for name, open := range pins(train) {
		t.Run(name, func(t *testing.T) {
			pin, clock := open()
			_, err := newDecoder(t, pin, clock).Read()
			if !errors.Is(err, ErrBitOutOfRange) {
				t.Fatalf("Read() error = %v, want %v", err, ErrBitOutOfRange)
			}

			var pe *ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("Read() error %T is no *ProtocolError", err)
			}
			if pe.Bit != 5 || pe.Duration != 48*time.Microsecond || pe.Phase != PhaseData {
				t.Errorf("ProtocolError = %+v, want bit 5 with 48µs", pe)
			}
			if !strings.Contains(err.Error(), "bit 5") {
				t.Errorf("error message should contain the bit index, got: %s", err)
			}
		})
	}
}

func TestBitLowOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		bit  int
		d    time.Duration
	}{
		{name: "low too short", bit: 7, d: 5 * time.Microsecond},
		{name: "low too long", bit: 7, d: 150 * time.Microsecond},
		{name: "first bit low too long", bit: 0, d: 56 * time.Microsecond},
		{name: "last bit low too short", bit: 39, d: 44 * time.Microsecond},
	}

	for _, tt := range tests {
		train := sim.Train(reference)
		train[sim.BitPulse(tt.bit)-1].Duration = tt.d

		for name, open := range pins(train) {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				pin, clock := open()
				m, err := newDecoder(t, pin, clock).Read()
				if !errors.Is(err, ErrBitOutOfRange) {
					t.Fatalf("Read() = %v, %v, want error %v", m, err, ErrBitOutOfRange)
				}

				var pe *ProtocolError
				if !errors.As(err, &pe) {
					t.Fatalf("Read() error %T is no *ProtocolError", err)
				}
				if pe.Bit != tt.bit || pe.Duration != tt.d || pe.Phase != PhaseData {
					t.Errorf("ProtocolError = %+v, want bit %v with %v", pe, tt.bit, tt.d)
				}
			})
		}
	}
}

func TestReadCoarsePollStep(t *testing.T) {
	for _, step := range []time.Duration{2 * time.Microsecond, 4 * time.Microsecond} {
		t.Run(step.String(), func(t *testing.T) {
			pin := sim.NewPin(sim.Train(reference))
			pin.SetStep(step)

			m, err := newDecoder(t, pin, pin).Read()
			if err != nil {
				t.Fatalf("Read() unexpected error: %v", err)
			}
			if m.HumidityInt() != 50 || m.TemperatureInt() != 27 {
				t.Errorf("Read() = %v, want humidity 50.0, temperature 27.0", m)
			}
		})
	}
}

func TestLevelTimeoutMidTransfer(t *testing.T) {
	// the sensor stops after the low phase of bit 10 and the line stays pulled up
	train := sim.Train(reference)[:sim.BitPulse(10)]

	for name, open := range pins(train) {
		t.Run(name, func(t *testing.T) {
			pin, clock := open()
			_, err := newDecoder(t, pin, clock).Read()
			if !errors.Is(err, ErrLevelTimeout) {
				t.Fatalf("Read() error = %v, want %v", err, ErrLevelTimeout)
			}

			var pe *ProtocolError
			if !errors.As(err, &pe) || pe.Bit != 10 {
				t.Errorf("Read() error = %v, want timeout at bit 10", err)
			}
		})
	}
}

func TestPinFault(t *testing.T) {
	errBus := errors.New("line released by kernel")

	for name, open := range pins(sim.Train(reference)) {
		t.Run(name, func(t *testing.T) {
			pin, clock := open()
			clock.ReadErr = errBus

			_, err := newDecoder(t, pin, clock).Read()
			if !errors.Is(err, ErrPinFault) {
				t.Fatalf("Read() error = %v, want %v", err, ErrPinFault)
			}
			if !errors.Is(err, errBus) {
				t.Errorf("Read() error = %v, want cause %v", err, errBus)
			}
			if Kind(err) != "pin" {
				t.Errorf("Kind() = %q, want pin", Kind(err))
			}
		})
	}
}

func TestSequenceSteps(t *testing.T) {
	pin := sim.NewPin(sim.Train(reference))
	d := newDecoder(t, pin, pin)

	if err := d.BeginTransaction(); err != nil {
		t.Fatalf("BeginTransaction() unexpected error: %v", err)
	}

	low, err := d.WaitForLevel(port.High, 200*time.Microsecond)
	if err != nil || low != AckLow {
		t.Fatalf("ack low = %v, %v, want %v", low, err, AckLow)
	}
	high, err := d.WaitForLevel(port.Low, 200*time.Microsecond)
	if err != nil || high != AckHigh {
		t.Fatalf("ack high = %v, %v, want %v", high, err, AckHigh)
	}

	b, err := d.SampleBits()
	if err != nil {
		t.Fatalf("SampleBits() unexpected error: %v", err)
	}
	if b != reference {
		t.Errorf("SampleBits() = % X, want % X", b, reference)
	}

	if err := d.Idle(); err != nil {
		t.Errorf("Idle() unexpected error: %v", err)
	}
	if l, _ := pin.Read(); l != port.High {
		t.Errorf("line is %v after Idle, want high", l)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: &ProtocolError{Kind: ErrAckTimeout, Bit: -1}, want: "ack_timeout"},
		{err: &ProtocolError{Kind: ErrAckPulseOutOfRange, Bit: -1}, want: "ack_out_of_range"},
		{err: &ProtocolError{Kind: ErrLevelTimeout, Bit: 3}, want: "level_timeout"},
		{err: &ProtocolError{Kind: ErrBitOutOfRange, Bit: 3}, want: "bit_out_of_range"},
		{err: &ChecksumError{Computed: 1, Received: 2}, want: "checksum"},
		{err: errors.New("other"), want: "other"},
	}

	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
