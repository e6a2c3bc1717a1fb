package transport

// LinkType identifies the carrier of a radio frame.
type LinkType int

const (
	// LinkUnknown is the zero value.
	LinkUnknown LinkType = iota
	// LinkUDP carries frames as UDP datagrams.
	LinkUDP
	// LinkPipe carries frames over an in-memory pipe.
	LinkPipe
)

// String returns the string representation of the link type.
func (t LinkType) String() string {
	switch t {
	case LinkUDP:
		return "UDP"
	case LinkPipe:
		return "Pipe"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the link type is known.
func (t LinkType) IsValid() bool {
	return t == LinkUDP || t == LinkPipe
}
