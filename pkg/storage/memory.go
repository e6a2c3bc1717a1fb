package storage

import "sync"

// MemoryStorage is an in-memory Storage. Data is lost when the process
// exits.
type MemoryStorage struct {
	mu      sync.RWMutex
	network *Network
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// LoadNetwork returns a copy of the stored network.
func (m *MemoryStorage) LoadNetwork() (*Network, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.network == nil {
		return nil, ErrNotFound
	}
	return m.network.Clone(), nil
}

// SaveNetwork stores a copy of n.
func (m *MemoryStorage) SaveNetwork(n *Network) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.network = n.Clone()
	return nil
}

// ClearNetwork forgets the stored network.
func (m *MemoryStorage) ClearNetwork() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.network = nil
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
