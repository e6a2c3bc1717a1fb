// Package commissioning drives the node's join, rejoin and retry sequence
// against the mesh stack.
//
// The decision logic lives in Transition, a pure function from (state, event)
// to (next state, joined flag update, actions). Controller is the thin shell
// that feeds it stack signals and retry expiries and performs the actions.
// All Controller entry points run on the stack's event context; IsJoined may
// be called from anywhere.
package commissioning

import (
	"errors"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/mesh"
)

// DefaultTxPower is the radio transmit power applied at stack start, in dBm.
const DefaultTxPower int8 = 3

// ErrNoStack is returned when a Controller is created without a stack.
var ErrNoStack = errors.New("commissioning: stack is required")

// Config configures a Controller.
type Config struct {
	// Stack is the mesh stack to drive. Required.
	Stack mesh.Stack

	// TxPower is applied when the stack initializes. Zero selects
	// DefaultTxPower.
	TxPower int8

	// Policy holds the retry delays. Zero fields select DefaultPolicy values.
	Policy Policy

	// OnJoinChange is called on the stack context whenever the joined flag
	// changes value. Optional.
	OnJoinChange func(joined bool)

	// LoggerFactory for controller logs. Optional.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Stack == nil {
		return ErrNoStack
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.TxPower == 0 {
		c.TxPower = DefaultTxPower
	}
	if c.Policy.InitRetryDelay == 0 {
		c.Policy.InitRetryDelay = DefaultInitRetryDelay
	}
	if c.Policy.SteeringRetryDelay == 0 {
		c.Policy.SteeringRetryDelay = DefaultSteeringRetryDelay
	}
}

// Controller owns the join state and the joined flag.
type Controller struct {
	config Config
	stack  mesh.Stack
	log    logging.LeveledLogger

	state  atomic.Int32
	joined atomic.Bool
}

// NewController creates a controller in StateUninitialized.
func NewController(config Config) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Controller{
		config: config,
		stack:  config.Stack,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("commissioning")
	}
	c.state.Store(int32(StateUninitialized))
	return c, nil
}

// IsJoined reports whether the node is associated with a network.
// It is a lock-free read, safe from any goroutine.
func (c *Controller) IsJoined() bool {
	return c.joined.Load()
}

// State returns the current join state.
func (c *Controller) State() JoinState {
	return JoinState(c.state.Load())
}

// HandleSignal implements mesh.SignalHandler.
func (c *Controller) HandleSignal(sig mesh.Signal) {
	factoryNew := false
	if (sig.Kind == mesh.SignalFirstStart || sig.Kind == mesh.SignalReboot) && sig.OK() {
		factoryNew = c.stack.IsFactoryNew()
		if c.log != nil {
			mode := "reboot"
			if factoryNew {
				mode = "factory_new"
			}
			c.log.Infof("Device start mode: %s", mode)
		}
	}
	c.apply(SignalEvent(sig, factoryNew))
}

func (c *Controller) onRetry(mode mesh.CommissioningMode) {
	c.apply(Event{Kind: EventRetryExpired, Mode: mode})
}

func (c *Controller) apply(ev Event) {
	prev := c.State()
	r := c.config.Policy.Transition(prev, ev)
	c.state.Store(int32(r.Next))

	if c.log != nil && prev != r.Next {
		c.log.Debugf("%s: %s -> %s", ev, prev, r.Next)
	}

	switch r.Join {
	case JoinSet:
		c.setJoined(true)
		if c.log != nil {
			verb := "Joined"
			if ev.Signal.Kind != mesh.SignalSteering {
				verb = "Rejoined"
			}
			c.log.Infof("%s network %s", verb, c.stack.NetworkInfo())
		}
	case JoinClear:
		c.setJoined(false)
		if c.log != nil && ev.Kind == EventSignal && ev.Signal.Kind == mesh.SignalLeave {
			c.log.Warn("Left network")
		}
	}

	for _, a := range r.Actions {
		c.perform(ev, a)
	}
}

func (c *Controller) perform(ev Event, a Action) {
	switch a.Kind {
	case ActionSetTxPower:
		if err := c.stack.SetTxPower(c.config.TxPower); err != nil {
			if c.log != nil {
				c.log.Warnf("Set TX power %d dBm failed: %v", c.config.TxPower, err)
			}
		} else if c.log != nil {
			c.log.Infof("TX power set to %d dBm", c.config.TxPower)
		}

	case ActionStartCommissioning:
		c.requestCommissioning(a.Mode)

	case ActionScheduleRetry:
		if c.log != nil {
			switch {
			case ev.Kind == EventSignal:
				c.log.Warnf("%s failed (%s), retrying %s in %v", ev.Signal.Kind, ev.Signal.Status, a.Mode, a.Delay)
			default:
				c.log.Warnf("%s request refused, retrying in %v", a.Mode, a.Delay)
			}
		}
		c.stack.ScheduleAlarm(a.Delay, a.Mode, c.onRetry)

	case ActionLogUnhandled:
		if c.log != nil {
			c.log.Infof("Unhandled signal %s", ev.Signal)
		}
	}
}

// requestCommissioning asks the stack to start mode. A refusal is fed back
// into the state machine so it arms a retry like any other failure.
func (c *Controller) requestCommissioning(mode mesh.CommissioningMode) {
	if c.log != nil {
		c.log.Debugf("Start commissioning %s", mode)
	}
	if err := c.stack.StartCommissioning(mode); err != nil {
		if c.log != nil {
			c.log.Warnf("Commissioning start failed mode=%s: %v", mode, err)
		}
		c.apply(Event{Kind: EventRequestFailed, Mode: mode})
	}
}

func (c *Controller) setJoined(v bool) {
	if c.joined.Swap(v) != v && c.config.OnJoinChange != nil {
		c.config.OnJoinChange(v)
	}
}

var _ mesh.SignalHandler = (*Controller)(nil)
