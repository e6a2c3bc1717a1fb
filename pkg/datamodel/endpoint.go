package datamodel

import "sync"

// BasicEndpoint is a simple in-memory Endpoint implementation.
// It provides thread-safe cluster registration and lookup.
type BasicEndpoint struct {
	mu       sync.RWMutex
	entry    EndpointEntry
	clusters map[ClusterID]Cluster
	order    []ClusterID // Preserve registration order
}

// NewEndpoint creates a new Home Automation endpoint with the given ID
// and device type.
func NewEndpoint(id EndpointID, device DeviceID) *BasicEndpoint {
	return &BasicEndpoint{
		entry: EndpointEntry{
			ID:      id,
			Profile: ProfileHomeAutomation,
			Device:  device,
		},
		clusters: make(map[ClusterID]Cluster),
	}
}

// ID returns the endpoint ID.
func (e *BasicEndpoint) ID() EndpointID {
	return e.entry.ID
}

// Entry returns the endpoint metadata.
func (e *BasicEndpoint) Entry() EndpointEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.entry
}

// AddCluster registers a cluster with the endpoint.
// Returns ErrClusterExists if a cluster with the same ID already exists.
func (e *BasicEndpoint) AddCluster(c Cluster) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := c.ID()
	if _, exists := e.clusters[id]; exists {
		return ErrClusterExists
	}

	e.clusters[id] = c
	e.order = append(e.order, id)
	return nil
}

// GetCluster returns the cluster with the given ID, or nil if not found.
func (e *BasicEndpoint) GetCluster(id ClusterID) Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clusters[id]
}

// GetClusters returns all clusters in registration order.
func (e *BasicEndpoint) GetClusters() []Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Cluster, 0, len(e.order))
	for _, id := range e.order {
		result = append(result, e.clusters[id])
	}
	return result
}

// GetClusterIDs returns the IDs of all clusters on this endpoint.
func (e *BasicEndpoint) GetClusterIDs() []ClusterID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]ClusterID{}, e.order...)
}

var _ Endpoint = (*BasicEndpoint)(nil)
