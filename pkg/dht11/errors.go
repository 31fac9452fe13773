package dht11

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAckTimeout         = errors.New("sensor did not acknowledge")
	ErrAckPulseOutOfRange = errors.New("acknowledgment pulse out of range")
	ErrLevelTimeout       = errors.New("timeout waiting for level change")
	ErrBitOutOfRange      = errors.New("bit pulse out of range")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrPinFault           = errors.New("pin fault")
	ErrInvalidParam       = errors.New("invalid parameters")
)

// Phase is the step of a transaction an error occurred in.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseAck
	PhaseData
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseAck:
		return "ack"
	case PhaseData:
		return "data"
	default:
		return "unknown"
	}
}

// ProtocolError is a failed transaction.
// Kind is one of the Err* sentinels, Bit is the index of the data bit (-1 outside the data phase)
// and Duration the measured pulse if there was one.
type ProtocolError struct {
	Kind     error
	Phase    Phase
	Bit      int
	Duration time.Duration
	Err      error
}

func (e *ProtocolError) Error() string {
	msg := e.Phase.String() + ": " + e.Kind.Error()
	if e.Bit >= 0 {
		msg += fmt.Sprintf(" at bit %d", e.Bit)
	}
	if e.Duration > 0 {
		msg += fmt.Sprintf(" (%v)", e.Duration)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap makes both the kind and the cause visible to errors.Is and errors.As.
func (e *ProtocolError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ChecksumError is a complete transfer whose checksum byte doesn't match the data.
type ChecksumError struct {
	Computed byte
	Received byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%v: computed 0x%02X, received 0x%02X", ErrChecksumMismatch, e.Computed, e.Received)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// Kind returns a short label of the error class, e.g. for metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAckTimeout):
		return "ack_timeout"
	case errors.Is(err, ErrAckPulseOutOfRange):
		return "ack_out_of_range"
	case errors.Is(err, ErrLevelTimeout):
		return "level_timeout"
	case errors.Is(err, ErrBitOutOfRange):
		return "bit_out_of_range"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, ErrPinFault):
		return "pin"
	default:
		return "other"
	}
}

func pinFault(phase Phase, bit int, err error) error {
	return &ProtocolError{Kind: ErrPinFault, Phase: phase, Bit: bit, Err: err}
}
