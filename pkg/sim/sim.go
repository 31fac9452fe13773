// Package sim emulates a DHT11 sensor on a virtual gpio line.
// Time is virtual: reading the line costs a fixed poll step and delays advance the clock,
// so a replayed pulse train is measured exactly and tests are deterministic.
package sim

import (
	"time"

	"dht11/pkg/port"
)

// Timing of the emulated sensor.
const (
	StartHold   = 18 * time.Millisecond
	ReleaseHigh = 30 * time.Microsecond
	AckLow      = 80 * time.Microsecond
	AckHigh     = 80 * time.Microsecond
	BitLow      = 50 * time.Microsecond
	ZeroHigh    = 27 * time.Microsecond
	OneHigh     = 70 * time.Microsecond

	// DefaultStep is the virtual time a single Read takes.
	DefaultStep = time.Microsecond
)

// Pulse is a level held for Duration.
type Pulse struct {
	Level    port.Level
	Duration time.Duration
}

// Frame returns the five transfer bytes of a reading including the checksum.
func Frame(humidityInt, humidityFrac, temperatureInt, temperatureFrac byte) [5]byte {
	sum := uint16(humidityInt) + uint16(humidityFrac) + uint16(temperatureInt) + uint16(temperatureFrac)
	return [5]byte{humidityInt, humidityFrac, temperatureInt, temperatureFrac, byte(sum)}
}

// Train returns the sensor response to a start signal transferring b.
func Train(b [5]byte) []Pulse {
	t := make([]Pulse, 0, 3+2*40+1)
	t = append(t,
		Pulse{Level: port.High, Duration: ReleaseHigh},
		Pulse{Level: port.Low, Duration: AckLow},
		Pulse{Level: port.High, Duration: AckHigh},
	)

	for i := 0; i < 40; i++ {
		high := ZeroHigh
		if b[i/8]&(0x80>>(i%8)) != 0 {
			high = OneHigh
		}
		t = append(t, Pulse{Level: port.Low, Duration: BitLow}, Pulse{Level: port.High, Duration: high})
	}

	return append(t, Pulse{Level: port.Low, Duration: BitLow})
}

// BitPulse returns the index of the high phase of data bit i in a Train.
func BitPulse(i int) int {
	return 4 + 2*i
}

// Pin is a virtual line with a sensor attached.
// The sensor replays its train every time the host releases the line after a start signal.
type Pin struct {
	base  time.Time
	now   time.Duration
	step  time.Duration
	train []Pulse

	dir      port.Direction
	out      port.Level
	lowSince time.Duration
	// trainStart is the virtual time of the last release, -1 if the sensor is silent.
	trainStart time.Duration

	// ReadErr is returned by Read if set.
	ReadErr error
	// Transactions counts the start signals the sensor answered.
	Transactions int
}

// NewPin attaches a sensor answering with train. A nil train never responds.
func NewPin(train []Pulse) *Pin {
	return &Pin{
		base:       time.Unix(0, 0),
		step:       DefaultStep,
		train:      train,
		dir:        port.Output,
		out:        port.High,
		trainStart: -1,
	}
}

// SetStep changes the virtual cost of a single Read.
func (p *Pin) SetStep(d time.Duration) {
	p.step = d
}

func (p *Pin) SetDirection(d port.Direction) error {
	if d == p.dir {
		return nil
	}

	if d == port.Input && p.out == port.Low && p.now-p.lowSince >= StartHold && p.train != nil {
		p.trainStart = p.now
		p.Transactions++
	}
	if d == port.Output {
		p.trainStart = -1
		p.lowSince = p.now
	}

	p.dir = d
	return nil
}

func (p *Pin) SetLevel(l port.Level) error {
	if p.dir == port.Output && l == port.Low && p.out == port.High {
		p.lowSince = p.now
	}
	p.out = l
	return nil
}

// Read samples the line and advances the clock by one step.
func (p *Pin) Read() (port.Level, error) {
	if p.ReadErr != nil {
		return port.Low, p.ReadErr
	}

	l, _, _ := p.phaseAt(p.now)
	p.now += p.step
	return l, nil
}

func (p *Pin) Delay(d time.Duration) {
	p.now += d
}

// Now returns the virtual time.
func (p *Pin) Now() time.Time {
	return p.base.Add(p.now)
}

// Elapsed returns the virtual time since the pin was created.
func (p *Pin) Elapsed() time.Duration {
	return p.now
}

// phaseAt returns the level at virtual time t and the bounds of the phase.
// end is -1 if the level doesn't change anymore.
func (p *Pin) phaseAt(t time.Duration) (l port.Level, start, end time.Duration) {
	if p.dir == port.Output {
		return p.out, 0, -1
	}
	if p.trainStart < 0 || t < p.trainStart {
		// pulled up
		return port.High, 0, -1
	}

	start = p.trainStart
	for _, pulse := range p.train {
		end = start + pulse.Duration
		if t < end {
			return pulse.Level, start, end
		}
		start = end
	}

	return port.High, start, -1
}

// EdgePin is a Pin which waits for edges instead of being polled.
type EdgePin struct {
	*Pin
}

// NewEdgePin attaches a sensor answering with train to an edge triggered line.
func NewEdgePin(train []Pulse) *EdgePin {
	return &EdgePin{Pin: NewPin(train)}
}

// WaitForLevel jumps to the next edge to target and returns how long the previous level lasted.
func (p *EdgePin) WaitForLevel(target port.Level, timeout time.Duration) (time.Duration, error) {
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}

	deadline := p.now + timeout
	l, start, end := p.phaseAt(p.now)
	if l == target {
		return 0, nil
	}

	for {
		if end < 0 || end > deadline {
			p.now = deadline
			return timeout, port.ErrTimeout
		}

		next, _, nextEnd := p.phaseAt(end)
		if next == target {
			p.now = end
			return end - start, nil
		}
		end = nextEnd
	}
}
