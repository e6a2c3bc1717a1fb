package nwk

import "errors"

// Network layer errors.
var (
	ErrFrameTooShort   = errors.New("nwk: frame too short")
	ErrUnknownFrame    = errors.New("nwk: unknown frame type")
	ErrPayloadTooShort = errors.New("nwk: payload too short for frame type")
	ErrWrongFrameType  = errors.New("nwk: payload does not match frame type")
)

// Frame format constants.
const (
	// HeaderSize is the fixed header length:
	// Type (1) + Sequence (1) + PAN ID (2) + Source (2) + Destination (2).
	HeaderSize = 8

	// IEEEAddressSize is the length of an extended address.
	IEEEAddressSize = 8
)

// Special addresses.
const (
	// BroadcastAddress reaches every device on the channel.
	BroadcastAddress uint16 = 0xFFFF

	// UnassignedAddress is the source of a device without a short address.
	UnassignedAddress uint16 = 0xFFFE

	// CoordinatorAddress is the coordinator's short address.
	CoordinatorAddress uint16 = 0x0000

	// BroadcastPAN is used before a PAN is known.
	BroadcastPAN uint16 = 0xFFFF
)
