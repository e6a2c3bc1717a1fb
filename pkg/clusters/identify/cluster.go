// Package identify implements the Identify cluster (0x0003).
//
// IdentifyTime is a countdown in seconds. Writing a non-zero value starts
// identification; reading returns the seconds remaining.
package identify

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/backkem/climate-node/pkg/datamodel"
	"github.com/backkem/climate-node/pkg/zcl"
)

// Cluster constants.
const (
	ClusterID       datamodel.ClusterID = 0x0003
	ClusterRevision uint16              = 2
)

// Attribute IDs.
const (
	AttrIdentifyTime datamodel.AttributeID = 0x0000
)

// Config provides dependencies for the Identify cluster.
type Config struct {
	// EndpointID is the endpoint this cluster belongs to.
	EndpointID datamodel.EndpointID

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Cluster implements the Identify cluster (0x0003).
type Cluster struct {
	*datamodel.ClusterBase
	now func() time.Time

	mu       sync.Mutex
	deadline time.Time
}

// New creates a new Identify cluster.
func New(cfg Config) *Cluster {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cluster{
		ClusterBase: datamodel.NewClusterBase(ClusterID, cfg.EndpointID, ClusterRevision),
		now:         now,
	}
}

// AttributeList implements datamodel.Cluster.
func (c *Cluster) AttributeList() []datamodel.AttributeEntry {
	return datamodel.MergeAttributeLists([]datamodel.AttributeEntry{
		{ID: AttrIdentifyTime, Type: zcl.TypeUint16, Access: datamodel.AccessRead | datamodel.AccessWrite},
	})
}

// ReadAttribute implements datamodel.Cluster.
func (c *Cluster) ReadAttribute(_ context.Context, id datamodel.AttributeID) (zcl.Value, error) {
	if v, ok := c.ReadGlobalAttribute(id); ok {
		return v, nil
	}
	if id != AttrIdentifyTime {
		return zcl.Value{}, datamodel.ErrAttributeNotFound
	}
	return zcl.Uint16(c.Remaining()), nil
}

// SetAttribute implements datamodel.AttributeSetter.
func (c *Cluster) SetAttribute(id datamodel.AttributeID, v zcl.Value) (bool, error) {
	if id != AttrIdentifyTime {
		return false, datamodel.ErrAttributeNotFound
	}
	if v.Type != zcl.TypeUint16 {
		return false, datamodel.ErrInvalidDataType
	}
	secs, _ := v.Uint()

	c.mu.Lock()
	defer c.mu.Unlock()
	if secs == 0 {
		c.deadline = time.Time{}
	} else {
		c.deadline = c.now().Add(time.Duration(secs) * time.Second)
	}
	c.IncrementDataVersion()
	return true, nil
}

// Identify starts identification for d, or stops it when d is zero.
func (c *Cluster) Identify(d time.Duration) {
	secs := uint64(d / time.Second)
	if secs > math.MaxUint16 {
		secs = math.MaxUint16
	}
	_, _ = c.SetAttribute(AttrIdentifyTime, zcl.Uint16(uint16(secs)))
}

// Remaining returns the identify seconds left, rounded up.
func (c *Cluster) Remaining() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deadline.IsZero() {
		return 0
	}
	left := c.deadline.Sub(c.now())
	if left <= 0 {
		return 0
	}
	return uint16((left + time.Second - 1) / time.Second)
}

// IsIdentifying reports whether the countdown is running.
func (c *Cluster) IsIdentifying() bool {
	return c.Remaining() > 0
}

var _ datamodel.AttributeSetter = (*Cluster)(nil)
