package commissioning

import (
	"errors"
	"testing"
	"time"

	"github.com/pion/logging"

	"github.com/backkem/climate-node/pkg/mesh"
)

type alarm struct {
	delay time.Duration
	mode  mesh.CommissioningMode
	fn    func(mesh.CommissioningMode)
}

// fakeStack records controller requests. Alarms are kept per mode so
// re-arming replaces the pending one.
type fakeStack struct {
	factoryNew  bool
	startErr    map[mesh.CommissioningMode]error
	txPower     []int8
	started     []mesh.CommissioningMode
	scheduled   []alarm
	pending     map[mesh.CommissioningMode]alarm
	networkInfo mesh.NetworkInfo
}

func newFakeStack() *fakeStack {
	return &fakeStack{
		factoryNew: true,
		startErr:   make(map[mesh.CommissioningMode]error),
		pending:    make(map[mesh.CommissioningMode]alarm),
		networkInfo: mesh.NetworkInfo{
			PANID: 0x1A62, Channel: 11, ShortAddress: 0x4F21,
		},
	}
}

func (s *fakeStack) StartCommissioning(mode mesh.CommissioningMode) error {
	s.started = append(s.started, mode)
	return s.startErr[mode]
}

func (s *fakeStack) ScheduleAlarm(delay time.Duration, mode mesh.CommissioningMode, fn func(mesh.CommissioningMode)) {
	a := alarm{delay: delay, mode: mode, fn: fn}
	s.scheduled = append(s.scheduled, a)
	s.pending[mode] = a
}

func (s *fakeStack) SetTxPower(dbm int8) error {
	s.txPower = append(s.txPower, dbm)
	return nil
}

func (s *fakeStack) IsFactoryNew() bool            { return s.factoryNew }
func (s *fakeStack) NetworkInfo() mesh.NetworkInfo { return s.networkInfo }

// fire runs the pending alarm for mode.
func (s *fakeStack) fire(t *testing.T, mode mesh.CommissioningMode) {
	t.Helper()
	a, ok := s.pending[mode]
	if !ok {
		t.Fatalf("no alarm pending for %s", mode)
	}
	delete(s.pending, mode)
	a.fn(a.mode)
}

func newTestController(t *testing.T, stack *fakeStack) *Controller {
	t.Helper()
	c, err := NewController(Config{
		Stack:         stack,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	return c
}

func TestController_FirstJoin(t *testing.T) {
	stack := newFakeStack()
	c := newTestController(t, stack)

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	if len(stack.txPower) != 1 || stack.txPower[0] != DefaultTxPower {
		t.Errorf("tx power = %v, want [%d]", stack.txPower, DefaultTxPower)
	}
	if c.State() != StateInitializing {
		t.Errorf("State() = %s, want Initializing", c.State())
	}

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalFirstStart})
	if c.State() != StateSteering || c.IsJoined() {
		t.Errorf("after first start: state %s joined %v, want Steering/false", c.State(), c.IsJoined())
	}

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalSteering})
	if !c.IsJoined() || c.State() != StateJoined {
		t.Errorf("after steering: state %s joined %v, want Joined/true", c.State(), c.IsJoined())
	}

	want := []mesh.CommissioningMode{mesh.ModeInitialization, mesh.ModeNetworkSteering}
	if len(stack.started) != 2 || stack.started[0] != want[0] || stack.started[1] != want[1] {
		t.Errorf("started = %v, want %v", stack.started, want)
	}
}

func TestController_Rejoin(t *testing.T) {
	stack := newFakeStack()
	stack.factoryNew = false
	c := newTestController(t, stack)

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalReboot})

	if !c.IsJoined() {
		t.Error("reboot of a commissioned node should mark joined")
	}
	if len(stack.started) != 1 {
		t.Errorf("started = %v, want only initialization", stack.started)
	}
}

func TestController_SteeringRetry(t *testing.T) {
	stack := newFakeStack()
	c := newTestController(t, stack)

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalFirstStart})

	for i := 0; i < 3; i++ {
		c.HandleSignal(mesh.Signal{Kind: mesh.SignalSteering, Status: mesh.StatusNoNetwork})
		if c.State() != StateRetryWait || c.IsJoined() {
			t.Fatalf("failure %d: state %s joined %v", i, c.State(), c.IsJoined())
		}
		last := stack.scheduled[len(stack.scheduled)-1]
		if last.delay != 30*time.Second || last.mode != mesh.ModeNetworkSteering {
			t.Errorf("failure %d: alarm %v/%s, want 30s/NetworkSteering", i, last.delay, last.mode)
		}
		stack.fire(t, mesh.ModeNetworkSteering)
		if c.State() != StateSteering {
			t.Errorf("after retry %d: state %s, want Steering", i, c.State())
		}
	}

	if len(stack.scheduled) != 3 {
		t.Errorf("%d alarms scheduled, want 3", len(stack.scheduled))
	}
	// init + first steering + three retries
	if len(stack.started) != 5 {
		t.Errorf("%d commissioning requests, want 5", len(stack.started))
	}
}

func TestController_InitFailureRetry(t *testing.T) {
	stack := newFakeStack()
	c := newTestController(t, stack)

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalReboot, Status: mesh.StatusStorage})

	if len(stack.scheduled) != 1 || stack.scheduled[0].delay != time.Second {
		t.Fatalf("scheduled = %+v, want one 1s alarm", stack.scheduled)
	}
	stack.fire(t, mesh.ModeInitialization)

	if c.State() != StateInitializing {
		t.Errorf("State() = %s, want Initializing", c.State())
	}
	if stack.started[len(stack.started)-1] != mesh.ModeInitialization {
		t.Errorf("retry requested %s, want Initialization", stack.started[len(stack.started)-1])
	}
}

func TestController_RequestRefused(t *testing.T) {
	stack := newFakeStack()
	stack.startErr[mesh.ModeNetworkSteering] = errors.New("busy")
	c := newTestController(t, stack)

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalFirstStart})

	if c.State() != StateRetryWait {
		t.Errorf("State() = %s, want RetryWait", c.State())
	}
	if len(stack.scheduled) != 1 || stack.scheduled[0].mode != mesh.ModeNetworkSteering {
		t.Fatalf("scheduled = %+v, want one steering retry", stack.scheduled)
	}

	delete(stack.startErr, mesh.ModeNetworkSteering)
	stack.fire(t, mesh.ModeNetworkSteering)
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalSteering})
	if !c.IsJoined() {
		t.Error("should be joined after the retried steering succeeds")
	}
}

func TestController_Leave(t *testing.T) {
	stack := newFakeStack()
	var changes []bool
	c, err := NewController(Config{
		Stack:        stack,
		OnJoinChange: func(j bool) { changes = append(changes, j) },
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalFirstStart})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalSteering})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalLeave})

	if c.IsJoined() || c.State() != StateLeft {
		t.Errorf("after leave: state %s joined %v, want Left/false", c.State(), c.IsJoined())
	}
	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Errorf("join changes = %v, want [true false]", changes)
	}
}

func TestController_UnknownSignal(t *testing.T) {
	stack := newFakeStack()
	stack.factoryNew = false
	c := newTestController(t, stack)

	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalReboot})
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalKind(0x55), Status: mesh.StatusFailure})

	if !c.IsJoined() || c.State() != StateJoined {
		t.Errorf("unknown signal changed state to %s joined %v", c.State(), c.IsJoined())
	}
	if len(stack.scheduled) != 0 {
		t.Errorf("unknown signal scheduled %d alarms", len(stack.scheduled))
	}
}

func TestController_CustomTxPower(t *testing.T) {
	stack := newFakeStack()
	c, err := NewController(Config{Stack: stack, TxPower: 10})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	c.HandleSignal(mesh.Signal{Kind: mesh.SignalStackInitialized})
	if len(stack.txPower) != 1 || stack.txPower[0] != 10 {
		t.Errorf("tx power = %v, want [10]", stack.txPower)
	}
}

func TestNewController_NoStack(t *testing.T) {
	if _, err := NewController(Config{}); !errors.Is(err, ErrNoStack) {
		t.Errorf("NewController() = %v, want ErrNoStack", err)
	}
}
