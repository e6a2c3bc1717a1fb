package datamodel

import (
	"context"

	"github.com/backkem/climate-node/pkg/zcl"
)

// Node is the device's attribute model: one or more application endpoints.
type Node interface {
	// GetEndpoint returns the endpoint with the specified ID, or nil if not found.
	GetEndpoint(id EndpointID) Endpoint

	// GetEndpoints returns all registered endpoints in registration order.
	GetEndpoints() []Endpoint
}

// Endpoint is one application endpoint and the server clusters it hosts.
type Endpoint interface {
	// ID returns the endpoint number.
	ID() EndpointID

	// Entry returns the endpoint's simple descriptor.
	Entry() EndpointEntry

	// GetCluster returns the server cluster with the specified ID, or nil if not found.
	GetCluster(id ClusterID) Cluster

	// GetClusters returns all server clusters on this endpoint in registration order.
	GetClusters() []Cluster
}

// Cluster is a server-side cluster instance.
type Cluster interface {
	// ID returns the cluster ID (e.g., 0x0402 for Temperature Measurement).
	ID() ClusterID

	// EndpointID returns the endpoint this cluster belongs to.
	EndpointID() EndpointID

	// DataVersion returns the current cluster data version.
	// Increments whenever any attribute changes.
	DataVersion() DataVersion

	// ClusterRevision returns the implemented cluster revision (0xFFFD).
	ClusterRevision() uint16

	// AttributeList returns metadata for all supported attributes,
	// including the global ones.
	AttributeList() []AttributeEntry

	// ReadAttribute returns the current value of an attribute.
	// Returns ErrAttributeNotFound if the attribute doesn't exist.
	ReadAttribute(ctx context.Context, id AttributeID) (zcl.Value, error)
}

// AttributeSetter is implemented by clusters whose attributes are updated
// locally by the application (for example from a sensor sample).
type AttributeSetter interface {
	Cluster

	// SetAttribute stores a new value. It reports whether the value changed.
	SetAttribute(id AttributeID, v zcl.Value) (bool, error)
}

// AttributeChangeListener is notified when attribute values change.
// Used for attribute reporting.
type AttributeChangeListener interface {
	// OnAttributeChanged is called when an attribute value changes.
	OnAttributeChanged(path ConcreteAttributePath)
}

// AttributeChangeListenerFunc adapts a function to AttributeChangeListener.
type AttributeChangeListenerFunc func(path ConcreteAttributePath)

// OnAttributeChanged calls f(path).
func (f AttributeChangeListenerFunc) OnAttributeChanged(path ConcreteAttributePath) {
	f(path)
}
