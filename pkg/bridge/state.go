package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/backkem/climate-node/pkg/coordinator"
)

// DeviceState is the merged state of one device, published as
// {"temperature":22.19,"humidity":36.16,"linkquality":255}.
type DeviceState struct {
	Name        string
	IEEEAddress uint64
	Temperature *float64
	Humidity    *float64
	LinkQuality uint8
	LastSeen    time.Time
}

type statePayload struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	LinkQuality uint8    `json:"linkquality"`
}

// MarshalJSON encodes the published payload. Unreported fields are
// omitted.
func (s DeviceState) MarshalJSON() ([]byte, error) {
	return json.Marshal(statePayload{
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		LinkQuality: s.LinkQuality,
	})
}

// Names resolves friendly names. Devices without an entry use their IEEE
// address.
type Names map[uint64]string

// Lookup returns the friendly name of a device.
func (n Names) Lookup(d coordinator.Device) string {
	if name, ok := n[d.IEEEAddress]; ok && name != "" {
		return name
	}
	return d.FriendlyName()
}

// Tracker merges reports into per-device state.
type Tracker struct {
	names Names

	mu     sync.Mutex
	states map[uint64]*DeviceState
}

// NewTracker creates a tracker using names for friendly names.
func NewTracker(names Names) *Tracker {
	return &Tracker{names: names, states: make(map[uint64]*DeviceState)}
}

// Update applies r and returns the resulting state. The bool is false when
// the report carried nothing convertible; first is true the first time a
// device produced state.
func (t *Tracker) Update(r coordinator.Report) (state DeviceState, first bool, ok bool) {
	m, ok := Convert(r)
	if !ok {
		return DeviceState{}, false, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s, seen := t.states[r.Device.IEEEAddress]
	if !seen {
		s = &DeviceState{Name: t.names.Lookup(r.Device), IEEEAddress: r.Device.IEEEAddress}
		t.states[r.Device.IEEEAddress] = s
	}
	v := m.Value
	switch m.Field {
	case FieldTemperature:
		s.Temperature = &v
	case FieldHumidity:
		s.Humidity = &v
	}
	s.LinkQuality = r.Device.LinkQuality
	s.LastSeen = r.Time
	return *s, !seen, true
}

// States returns a snapshot of every tracked device.
func (t *Tracker) States() []DeviceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]DeviceState, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, *s)
	}
	return out
}
