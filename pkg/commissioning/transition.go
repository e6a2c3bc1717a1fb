package commissioning

import (
	"fmt"
	"time"

	"github.com/backkem/climate-node/pkg/mesh"
)

// Default retry delays.
const (
	DefaultInitRetryDelay     = 1 * time.Second
	DefaultSteeringRetryDelay = 30 * time.Second
)

// Event is one input to the state machine.
type Event struct {
	Kind EventKind

	// Signal is set for EventSignal.
	Signal mesh.Signal

	// FactoryNew is the stack's factory-new flag, sampled when a
	// first-start or reboot signal is handled.
	FactoryNew bool

	// Mode is set for EventRetryExpired and EventRequestFailed.
	Mode mesh.CommissioningMode
}

// SignalEvent wraps a stack signal.
func SignalEvent(sig mesh.Signal, factoryNew bool) Event {
	return Event{Kind: EventSignal, Signal: sig, FactoryNew: factoryNew}
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e.Kind == EventSignal {
		return e.Signal.String()
	}
	return fmt.Sprintf("%s(%s)", e.Kind, e.Mode)
}

// Action is a side effect the caller performs after a transition.
type Action struct {
	Kind  ActionKind
	Mode  mesh.CommissioningMode
	Delay time.Duration
}

// Result is the outcome of a transition.
type Result struct {
	Next    JoinState
	Join    JoinUpdate
	Actions []Action
}

// Policy holds the retry delays.
type Policy struct {
	InitRetryDelay     time.Duration
	SteeringRetryDelay time.Duration
}

// DefaultPolicy is 1 s for initialization and 30 s for steering.
var DefaultPolicy = Policy{
	InitRetryDelay:     DefaultInitRetryDelay,
	SteeringRetryDelay: DefaultSteeringRetryDelay,
}

// Transition applies DefaultPolicy.
func Transition(s JoinState, ev Event) Result {
	return DefaultPolicy.Transition(s, ev)
}

// RetryDelay returns the backoff for a failed commissioning mode.
func (p Policy) RetryDelay(mode mesh.CommissioningMode) time.Duration {
	if mode == mesh.ModeNetworkSteering {
		return p.SteeringRetryDelay
	}
	return p.InitRetryDelay
}

// Transition computes the next state and the side effects for ev in state s.
// It performs no I/O.
//
// The joined flag is set only on a successful reboot of a non-factory-new
// node or a successful steering result. Every other outcome of those
// signals, a leave, a refused request or a stack restart clears it.
func (p Policy) Transition(s JoinState, ev Event) Result {
	switch ev.Kind {
	case EventRetryExpired:
		// Only the failure that armed the timer is waiting for it. A retry
		// that fires after some other signal moved the node on is stale.
		if s != StateRetryWait {
			return Result{Next: s}
		}
		next := StateInitializing
		if ev.Mode == mesh.ModeNetworkSteering {
			next = StateSteering
		}
		return Result{
			Next:    next,
			Actions: []Action{{Kind: ActionStartCommissioning, Mode: ev.Mode}},
		}

	case EventRequestFailed:
		return p.retry(ev.Mode)
	}

	sig := ev.Signal
	switch sig.Kind {
	case mesh.SignalStackInitialized:
		r := Result{
			Next: StateInitializing,
			Actions: []Action{
				{Kind: ActionSetTxPower},
				{Kind: ActionStartCommissioning, Mode: mesh.ModeInitialization},
			},
		}
		if s != StateUninitialized {
			r.Join = JoinClear
		}
		return r

	case mesh.SignalFirstStart, mesh.SignalReboot:
		switch {
		case !sig.OK():
			return p.retry(mesh.ModeInitialization)
		case ev.FactoryNew:
			return Result{
				Next:    StateSteering,
				Join:    JoinClear,
				Actions: []Action{{Kind: ActionStartCommissioning, Mode: mesh.ModeNetworkSteering}},
			}
		default:
			return Result{Next: StateJoined, Join: JoinSet}
		}

	case mesh.SignalSteering:
		if !sig.OK() {
			return p.retry(mesh.ModeNetworkSteering)
		}
		return Result{Next: StateJoined, Join: JoinSet}

	case mesh.SignalLeave:
		return Result{Next: StateLeft, Join: JoinClear}

	default:
		return Result{
			Next:    s,
			Actions: []Action{{Kind: ActionLogUnhandled}},
		}
	}
}

func (p Policy) retry(mode mesh.CommissioningMode) Result {
	return Result{
		Next: StateRetryWait,
		Join: JoinClear,
		Actions: []Action{{
			Kind:  ActionScheduleRetry,
			Mode:  mode,
			Delay: p.RetryDelay(mode),
		}},
	}
}
