package datamodel

import (
	"context"
	"fmt"
	"sync"

	"github.com/backkem/climate-node/pkg/zcl"
)

// BasicNode is a simple in-memory Node implementation.
// It provides thread-safe endpoint registration and lookup, and doubles as
// the attribute store: updates made between Lock and Unlock are published
// to the change listener only after Unlock, so a remote reader never sees
// half of a multi-attribute update.
type BasicNode struct {
	mu        sync.RWMutex
	endpoints map[EndpointID]Endpoint
	order     []EndpointID // Preserve registration order
	listener  AttributeChangeListener

	// store guards attribute mutation and remote attribute reads.
	store   sync.Mutex
	pending []ConcreteAttributePath
}

// NewNode creates a new empty node.
func NewNode() *BasicNode {
	return &BasicNode{
		endpoints: make(map[EndpointID]Endpoint),
	}
}

// AddEndpoint registers an endpoint with the node.
// Returns ErrEndpointExists if an endpoint with the same ID already exists.
func (n *BasicNode) AddEndpoint(ep Endpoint) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := ep.ID()
	if _, exists := n.endpoints[id]; exists {
		return ErrEndpointExists
	}

	n.endpoints[id] = ep
	n.order = append(n.order, id)
	return nil
}

// GetEndpoint returns the endpoint with the given ID, or nil if not found.
func (n *BasicNode) GetEndpoint(id EndpointID) Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.endpoints[id]
}

// GetEndpoints returns all endpoints in registration order.
func (n *BasicNode) GetEndpoints() []Endpoint {
	n.mu.RLock()
	defer n.mu.RUnlock()

	result := make([]Endpoint, 0, len(n.order))
	for _, id := range n.order {
		result = append(result, n.endpoints[id])
	}
	return result
}

// GetCluster is a convenience method to get a cluster by endpoint and cluster ID.
// Returns nil if the endpoint or cluster doesn't exist.
func (n *BasicNode) GetCluster(endpointID EndpointID, clusterID ClusterID) Cluster {
	ep := n.GetEndpoint(endpointID)
	if ep == nil {
		return nil
	}
	return ep.GetCluster(clusterID)
}

// SetAttributeChangeListener sets the listener for attribute changes.
func (n *BasicNode) SetAttributeChangeListener(listener AttributeChangeListener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listener = listener
}

// Lock acquires exclusive access to the attribute store.
func (n *BasicNode) Lock() {
	n.store.Lock()
}

// Unlock releases the attribute store and notifies the listener of every
// attribute changed while it was held.
func (n *BasicNode) Unlock() {
	changed := n.pending
	n.pending = nil
	n.store.Unlock()

	for _, path := range changed {
		n.notify(path)
	}
}

// SetAttribute updates a locally managed attribute. The caller must hold
// the store via Lock; the change notification is delivered on Unlock.
func (n *BasicNode) SetAttribute(ep EndpointID, cl ClusterID, attr AttributeID, v zcl.Value) error {
	c := n.GetCluster(ep, cl)
	if c == nil {
		if n.GetEndpoint(ep) == nil {
			return fmt.Errorf("set %d/0x%04X: %w", ep, uint16(cl), ErrEndpointNotFound)
		}
		return fmt.Errorf("set %d/0x%04X: %w", ep, uint16(cl), ErrClusterNotFound)
	}
	setter, ok := c.(AttributeSetter)
	if !ok {
		return fmt.Errorf("set %d/0x%04X/0x%04X: %w", ep, uint16(cl), uint16(attr), ErrAttributeReadOnly)
	}

	path := ConcreteAttributePath{Endpoint: ep, Cluster: cl, Attribute: attr}
	changed, err := setter.SetAttribute(attr, v)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	if changed {
		n.pending = append(n.pending, path)
	}
	return nil
}

// ReadAttribute reads an attribute under the store lock.
func (n *BasicNode) ReadAttribute(ctx context.Context, ep EndpointID, cl ClusterID, attr AttributeID) (zcl.Value, error) {
	c := n.GetCluster(ep, cl)
	if c == nil {
		return zcl.Value{}, ErrClusterNotFound
	}
	n.Lock()
	defer n.Unlock()
	return c.ReadAttribute(ctx, attr)
}

func (n *BasicNode) notify(path ConcreteAttributePath) {
	n.mu.RLock()
	listener := n.listener
	n.mu.RUnlock()

	if listener != nil {
		listener.OnAttributeChanged(path)
	}
}

// Verify BasicNode implements the interfaces.
var _ Node = (*BasicNode)(nil)
