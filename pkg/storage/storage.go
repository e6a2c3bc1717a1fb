// Package storage persists the network a node has joined, so that a reboot
// rejoins silently instead of steering again.
package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by LoadNetwork when nothing is stored.
var ErrNotFound = errors.New("storage: no network stored")

// Storage abstracts persistent storage for node network state.
//
// All methods must be safe for concurrent use.
type Storage interface {
	// LoadNetwork returns the stored network or ErrNotFound.
	LoadNetwork() (*Network, error)

	// SaveNetwork replaces the stored network.
	SaveNetwork(n *Network) error

	// ClearNetwork removes the stored network. Clearing an empty store
	// is not an error.
	ClearNetwork() error
}

// Network is the state a node keeps after joining.
type Network struct {
	PANID         uint16    `cbor:"1,keyasint"`
	ExtendedPANID uint64    `cbor:"2,keyasint"`
	Channel       uint8     `cbor:"3,keyasint"`
	ShortAddress  uint16    `cbor:"4,keyasint"`
	IEEEAddress   uint64    `cbor:"5,keyasint"`
	JoinedAt      time.Time `cbor:"6,keyasint"`
}

// Clone returns a copy of n.
func (n *Network) Clone() *Network {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

// String returns a short description.
func (n *Network) String() string {
	return fmt.Sprintf("PAN=0x%04X CH=%d SHORT=0x%04X", n.PANID, n.Channel, n.ShortAddress)
}
