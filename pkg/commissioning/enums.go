package commissioning

// JoinState is the controller's view of the node's network association.
type JoinState int

const (
	// StateUninitialized is the initial state before the stack reports ready.
	StateUninitialized JoinState = iota

	// StateInitializing indicates initialization has been requested and the
	// controller waits for a first-start or reboot result.
	StateInitializing

	// StateSteering indicates network steering has been requested and the
	// controller waits for the steering result.
	StateSteering

	// StateJoined indicates the node is associated with a network.
	StateJoined

	// StateLeft indicates the node left or was removed from the network.
	StateLeft

	// StateRetryWait indicates a commissioning step failed and a retry
	// timer is pending.
	StateRetryWait
)

// String returns a human-readable representation of the join state.
func (s JoinState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitializing:
		return "Initializing"
	case StateSteering:
		return "Steering"
	case StateJoined:
		return "Joined"
	case StateLeft:
		return "Left"
	case StateRetryWait:
		return "RetryWait"
	default:
		return "Unknown"
	}
}

// EventKind distinguishes the inputs of the state machine.
type EventKind int

const (
	// EventSignal is a signal delivered by the stack.
	EventSignal EventKind = iota

	// EventRetryExpired is a retry timer firing.
	EventRetryExpired

	// EventRequestFailed is the stack refusing a commissioning request.
	EventRequestFailed
)

// String returns a human-readable representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSignal:
		return "Signal"
	case EventRetryExpired:
		return "RetryExpired"
	case EventRequestFailed:
		return "RequestFailed"
	default:
		return "Unknown"
	}
}

// ActionKind is a side effect requested by a transition.
type ActionKind int

const (
	// ActionSetTxPower sets the configured radio transmit power.
	ActionSetTxPower ActionKind = iota

	// ActionStartCommissioning requests a commissioning procedure (Mode).
	ActionStartCommissioning

	// ActionScheduleRetry arms the retry timer for Mode after Delay.
	ActionScheduleRetry

	// ActionLogUnhandled records a signal the controller does not act on.
	ActionLogUnhandled
)

// String returns a human-readable representation of the action kind.
func (k ActionKind) String() string {
	switch k {
	case ActionSetTxPower:
		return "SetTxPower"
	case ActionStartCommissioning:
		return "StartCommissioning"
	case ActionScheduleRetry:
		return "ScheduleRetry"
	case ActionLogUnhandled:
		return "LogUnhandled"
	default:
		return "Unknown"
	}
}

// JoinUpdate says what a transition does to the joined flag.
type JoinUpdate int

const (
	JoinUnchanged JoinUpdate = iota
	JoinSet
	JoinClear
)
