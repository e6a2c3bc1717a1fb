package coordinator

import (
	"math/rand"
	"net"
	"sort"
	"time"

	"github.com/backkem/climate-node/pkg/nwk"
)

// DefaultLinkQuality is reported for devices on a link without signal
// measurements.
const DefaultLinkQuality = 255

// Device is a joined end device.
type Device struct {
	IEEEAddress  uint64
	ShortAddress uint16
	Capability   nwk.Capability
	LinkQuality  uint8
	JoinedAt     time.Time
	LastSeen     time.Time

	addr net.Addr
}

// FriendlyName is the IEEE address in 0x-prefixed hex, the default name
// used by bridges.
func (d Device) FriendlyName() string {
	return nwk.FormatIEEE(d.IEEEAddress)
}

// deviceTable indexes devices by both addresses. Callers hold the
// coordinator mutex.
type deviceTable struct {
	byIEEE  map[uint64]*Device
	byShort map[uint16]*Device
	rng     *rand.Rand
}

func newDeviceTable() *deviceTable {
	return &deviceTable{
		byIEEE:  make(map[uint64]*Device),
		byShort: make(map[uint16]*Device),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *deviceTable) len() int { return len(t.byIEEE) }

func (t *deviceTable) put(d *Device) {
	if old, ok := t.byIEEE[d.IEEEAddress]; ok && old.ShortAddress != d.ShortAddress {
		delete(t.byShort, old.ShortAddress)
	}
	t.byIEEE[d.IEEEAddress] = d
	t.byShort[d.ShortAddress] = d
}

func (t *deviceTable) remove(ieee uint64) (*Device, bool) {
	d, ok := t.byIEEE[ieee]
	if !ok {
		return nil, false
	}
	delete(t.byIEEE, ieee)
	delete(t.byShort, d.ShortAddress)
	return d, true
}

// allocate picks an unused stochastic short address.
func (t *deviceTable) allocate() (uint16, bool) {
	for i := 0; i < 64; i++ {
		a := uint16(t.rng.Intn(0xFFF7) + 1) // 0x0001..0xFFF7
		if _, used := t.byShort[a]; !used {
			return a, true
		}
	}
	for a := uint16(1); a <= 0xFFF7; a++ {
		if _, used := t.byShort[a]; !used {
			return a, true
		}
	}
	return 0, false
}

func (t *deviceTable) list() []Device {
	out := make([]Device, 0, len(t.byIEEE))
	for _, d := range t.byIEEE {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShortAddress < out[j].ShortAddress })
	return out
}
