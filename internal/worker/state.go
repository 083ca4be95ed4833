package worker

// State is the lifecycle position of a polling worker.
type State int

const (
	// StateCreated is the initial state before Run is called.
	StateCreated State = iota

	// StateWaiting means the worker is in its start stagger.
	StateWaiting

	// StatePolling means a poll is in flight.
	StatePolling

	// StateSleeping means the worker is waiting for the next interval.
	StateSleeping

	// StateStopped means the loop has exited.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateWaiting:
		return "waiting"
	case StatePolling:
		return "polling"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true while the loop is running.
func (s State) IsActive() bool {
	return s == StateWaiting || s == StatePolling || s == StateSleeping
}

// IsTerminal returns true once the loop has exited.
func (s State) IsTerminal() bool {
	return s == StateStopped
}
