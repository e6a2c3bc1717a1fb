package stack

// State is the lifecycle state of a Stack.
type State int

const (
	// StateCreated means the stack is built but Run has not been called.
	StateCreated State = iota

	// StateRunning means the event loop and radio link are up.
	StateRunning

	// StateStopped means Run returned. A stopped stack cannot be restarted.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// phase tracks network steering progress.
type phase int

const (
	phaseIdle phase = iota
	phaseScanning
	phaseAssociating
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseScanning:
		return "scanning"
	case phaseAssociating:
		return "associating"
	default:
		return "unknown"
	}
}
