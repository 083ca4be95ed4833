package suite

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a lifecycle call does not match the
// coordinator's current state.
var ErrInvalidState = errors.New("invalid coordinator state")

// State is the lifecycle position of a Coordinator.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// validTransitions maps each state to the state it may advance to.
var validTransitions = map[State]State{
	StateIdle:     StateRunning,
	StateRunning:  StateStopping,
	StateStopping: StateStopped,
}

func checkTransition(from, to State) error {
	if next, ok := validTransitions[from]; !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}
	return nil
}
