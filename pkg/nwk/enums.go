package nwk

import "fmt"

// FrameType identifies the network frame.
type FrameType uint8

// Frame types.
const (
	FrameBeaconRequest  FrameType = 0x01
	FrameBeacon         FrameType = 0x02
	FrameAssocRequest   FrameType = 0x03
	FrameAssocResponse  FrameType = 0x04
	FrameLeave          FrameType = 0x05
	FrameDeviceAnnounce FrameType = 0x06
	FrameData           FrameType = 0x10
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameBeaconRequest:
		return "BeaconRequest"
	case FrameBeacon:
		return "Beacon"
	case FrameAssocRequest:
		return "AssociationRequest"
	case FrameAssocResponse:
		return "AssociationResponse"
	case FrameLeave:
		return "Leave"
	case FrameDeviceAnnounce:
		return "DeviceAnnounce"
	case FrameData:
		return "Data"
	default:
		return fmt.Sprintf("FrameType(0x%02X)", uint8(t))
	}
}

// IsValid returns true for a known frame type.
func (t FrameType) IsValid() bool {
	switch t {
	case FrameBeaconRequest, FrameBeacon, FrameAssocRequest, FrameAssocResponse,
		FrameLeave, FrameDeviceAnnounce, FrameData:
		return true
	}
	return false
}

// AssocStatus is the coordinator's answer to an association request.
type AssocStatus uint8

// Association outcomes.
const (
	AssocSuccess       AssocStatus = 0x00
	AssocPANAtCapacity AssocStatus = 0x01
	AssocAccessDenied  AssocStatus = 0x02
)

// String returns the status name.
func (s AssocStatus) String() string {
	switch s {
	case AssocSuccess:
		return "Success"
	case AssocPANAtCapacity:
		return "PANAtCapacity"
	case AssocAccessDenied:
		return "AccessDenied"
	default:
		return fmt.Sprintf("AssocStatus(0x%02X)", uint8(s))
	}
}

// Capability is the device capability bitmap sent on association.
type Capability uint8

// Capability bits.
const (
	CapAlternatePANCoordinator Capability = 0x01
	CapFullFunctionDevice      Capability = 0x02
	CapMainsPowered            Capability = 0x04
	CapRxOnWhenIdle            Capability = 0x08
	CapAllocateAddress         Capability = 0x80
)

// Has reports whether all bits of c are set.
func (c Capability) Has(bits Capability) bool {
	return c&bits == bits
}
