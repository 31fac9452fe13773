package dht11

import "time"

// Timing of the DHT11 single wire protocol.
// All pulse bands use the same flat Tolerance around their nominal duration.
const (
	// MinStartHold is the shortest host start signal the sensor answers to.
	MinStartHold = 18 * time.Millisecond

	// AckLow and AckHigh are the phases of the sensor acknowledgment pulse.
	AckLow  = 80 * time.Microsecond
	AckHigh = 80 * time.Microsecond

	// BitLow is the low phase in front of every data bit.
	BitLow = 50 * time.Microsecond
	// ZeroHigh and OneHigh are the high phases encoding a 0 and a 1.
	ZeroHigh = 27 * time.Microsecond
	OneHigh  = 70 * time.Microsecond

	// Tolerance is the accepted deviation from a nominal pulse duration.
	Tolerance = 5 * time.Microsecond

	// DataBits is the number of bits of one transfer.
	DataBits = 40
)

const (
	defaultAckTimeout   = time.Millisecond
	defaultLevelTimeout = 200 * time.Microsecond
)

// within reports whether d is inside the tolerance band around nominal.
func within(d, nominal time.Duration) bool {
	return d >= nominal-Tolerance && d <= nominal+Tolerance
}

// classify maps the duration of a bit's high phase to the bit value.
// ok is false if d is outside the zero and the one band.
func classify(d time.Duration) (bit byte, ok bool) {
	switch {
	case within(d, ZeroHigh):
		return 0, true
	case within(d, OneHigh):
		return 1, true
	default:
		return 0, false
	}
}
