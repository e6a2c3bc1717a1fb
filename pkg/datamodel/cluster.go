package datamodel

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"

	"github.com/backkem/climate-node/pkg/zcl"
)

// ClusterBase provides common functionality for cluster implementations.
// Embed this struct in your cluster implementation to get standard behavior
// for global attributes and data version management.
type ClusterBase struct {
	id          ClusterID
	endpointID  EndpointID
	revision    uint16
	dataVersion atomic.Uint32
}

// NewClusterBase creates a new cluster base with the given parameters.
// The data version starts at a random value.
func NewClusterBase(id ClusterID, endpointID EndpointID, revision uint16) *ClusterBase {
	cb := &ClusterBase{
		id:         id,
		endpointID: endpointID,
		revision:   revision,
	}
	cb.dataVersion.Store(randomDataVersion())
	return cb
}

// ID returns the cluster ID.
func (c *ClusterBase) ID() ClusterID {
	return c.id
}

// EndpointID returns the endpoint this cluster belongs to.
func (c *ClusterBase) EndpointID() EndpointID {
	return c.endpointID
}

// ClusterRevision returns the cluster revision.
func (c *ClusterBase) ClusterRevision() uint16 {
	return c.revision
}

// DataVersion returns the current data version.
func (c *ClusterBase) DataVersion() DataVersion {
	return DataVersion(c.dataVersion.Load())
}

// IncrementDataVersion increments the data version.
// Call this whenever an attribute value changes.
func (c *ClusterBase) IncrementDataVersion() {
	c.dataVersion.Add(1)
}

// Path returns the concrete cluster path for this cluster.
func (c *ClusterBase) Path() ConcreteClusterPath {
	return ConcreteClusterPath{
		Endpoint: c.endpointID,
		Cluster:  c.id,
	}
}

// AttributePath returns a concrete attribute path for an attribute on this cluster.
func (c *ClusterBase) AttributePath(attrID AttributeID) ConcreteAttributePath {
	return ConcreteAttributePath{
		Endpoint:  c.endpointID,
		Cluster:   c.id,
		Attribute: attrID,
	}
}

// ReadGlobalAttribute handles reading of global attributes.
// Returns false if attrID is not a global attribute.
func (c *ClusterBase) ReadGlobalAttribute(attrID AttributeID) (zcl.Value, bool) {
	switch attrID {
	case GlobalAttrClusterRevision:
		return zcl.Uint16(c.revision), true
	default:
		return zcl.Value{}, false
	}
}

// randomDataVersion generates a random initial data version.
func randomDataVersion() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	return binary.LittleEndian.Uint32(buf[:])
}
