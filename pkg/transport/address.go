package transport

import (
	"fmt"
	"net"
)

// PeerAddress identifies the radio peer a frame came from or goes to.
type PeerAddress struct {
	Addr net.Addr
	Link LinkType
}

// String returns a human-readable representation of the peer address.
func (p PeerAddress) String() string {
	if p.Addr == nil {
		return fmt.Sprintf("%s:<nil>", p.Link)
	}
	return fmt.Sprintf("%s:%s", p.Link, p.Addr.String())
}

// IsValid returns true if the address has a known link type and an address.
func (p PeerAddress) IsValid() bool {
	return p.Link.IsValid() && p.Addr != nil
}

// NewPeerAddress classifies addr by its concrete type.
func NewPeerAddress(addr net.Addr) PeerAddress {
	switch addr.(type) {
	case nil:
		return PeerAddress{}
	case PipeAddr, *PipeAddr:
		return PeerAddress{Addr: addr, Link: LinkPipe}
	default:
		return PeerAddress{Addr: addr, Link: LinkUDP}
	}
}

// UDPAddrFromString resolves a host:port string into a UDP PeerAddress.
func UDPAddrFromString(addr string) (PeerAddress, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return PeerAddress{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return PeerAddress{Addr: udpAddr, Link: LinkUDP}, nil
}
