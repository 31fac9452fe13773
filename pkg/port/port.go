// Package port holds the definition of a physical port
package port

import (
	"errors"
	"time"
)

// ErrTimeout is returned by a LevelWaiter if the line didn't reach the requested level in time.
var ErrTimeout = errors.New("timeout waiting for level")

// Level is the electrical level of a line.
type Level bool

const (
	// High indicates a logical 1.
	High Level = true
	// Low indicates a logical 0.
	Low Level = false
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Direction is the direction of a line.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// EventType indicates the type of change to the line active state.
//
// Note that for active low lines a low line level results in a high active
// state.
type EventType int

const (
	_ EventType = iota
	// RisingEdge indicates an inactive to active event (low to high).
	RisingEdge
	// FallingEdge indicates an active to inactive event (high to low).
	FallingEdge
)

// Level returns the line level after the edge.
func (t EventType) Level() Level {
	return t == RisingEdge
}

type Event struct {
	// Timestamp indicates the time the event was detected.
	Timestamp time.Duration
	// The type of state change event this structure represents.
	Type EventType
}

// Pin is the capability a single wire protocol needs from a gpio line.
type Pin interface {
	// SetDirection switches the line between Input and Output.
	SetDirection(Direction) error
	// SetLevel drives the line, the line must be an Output.
	SetLevel(Level) error
	// Read returns the current level of the line.
	Read() (Level, error)
	// Delay waits at least d with microsecond resolution.
	Delay(d time.Duration)
}

// LevelWaiter is implemented by pins which can block on edge events.
// WaitForLevel returns the time the line stayed at the previous level
// or ErrTimeout if the target level isn't reached within timeout.
type LevelWaiter interface {
	WaitForLevel(target Level, timeout time.Duration) (time.Duration, error)
}
