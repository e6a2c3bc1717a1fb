package stack

import (
	"sync"
	"time"

	"github.com/backkem/climate-node/pkg/mesh"
)

type alarm struct {
	timer *time.Timer
	gen   uint64
}

// alarmTable holds at most one pending alarm per commissioning mode.
// Arming a mode replaces its pending alarm; a replaced alarm that already
// fired but has not run yet is discarded by its generation.
type alarmTable struct {
	mu      sync.Mutex
	pending map[mesh.CommissioningMode]*alarm
	gen     uint64
}

func newAlarmTable() *alarmTable {
	return &alarmTable{pending: make(map[mesh.CommissioningMode]*alarm)}
}

// arm schedules fire(gen) after delay. fire runs on a timer goroutine and
// must hand off to the event loop.
func (t *alarmTable) arm(delay time.Duration, mode mesh.CommissioningMode, fire func(gen uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.pending[mode]; ok {
		old.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.pending[mode] = &alarm{
		gen:   gen,
		timer: time.AfterFunc(delay, func() { fire(gen) }),
	}
}

// take removes the alarm for mode if gen is still current and reports
// whether the caller should run it.
func (t *alarmTable) take(mode mesh.CommissioningMode, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.pending[mode]
	if !ok || a.gen != gen {
		return false
	}
	delete(t.pending, mode)
	return true
}

// count returns how many alarms are armed.
func (t *alarmTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *alarmTable) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for mode, a := range t.pending {
		a.timer.Stop()
		delete(t.pending, mode)
	}
}
