// Package nwk encodes the network frames exchanged between a node and the
// coordinator over the simulated radio link.
//
// Every frame starts with an 8-byte little-endian header followed by a
// type-specific payload:
//
//	Type | Seq | PAN ID | Source | Destination | Payload...
package nwk

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed network header.
type Header struct {
	Type        FrameType
	Sequence    uint8
	PANID       uint16
	Source      uint16
	Destination uint16
}

// EncodeTo writes the header into buf, which must hold HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) int {
	buf[0] = uint8(h.Type)
	buf[1] = h.Sequence
	binary.LittleEndian.PutUint16(buf[2:4], h.PANID)
	binary.LittleEndian.PutUint16(buf[4:6], h.Source)
	binary.LittleEndian.PutUint16(buf[6:8], h.Destination)
	return HeaderSize
}

// Decode parses the header from data and returns the bytes consumed.
func (h *Header) Decode(data []byte) (int, error) {
	if len(data) < HeaderSize {
		return 0, ErrFrameTooShort
	}
	h.Type = FrameType(data[0])
	if !h.Type.IsValid() {
		return 0, fmt.Errorf("%w: 0x%02X", ErrUnknownFrame, data[0])
	}
	h.Sequence = data[1]
	h.PANID = binary.LittleEndian.Uint16(data[2:4])
	h.Source = binary.LittleEndian.Uint16(data[4:6])
	h.Destination = binary.LittleEndian.Uint16(data[6:8])
	return HeaderSize, nil
}

// Frame is a decoded network frame. Payload holds the raw type-specific
// bytes; use the Decode* helpers to interpret it.
type Frame struct {
	Header  Header
	Payload []byte
}

// Encode serializes the frame.
func (f *Frame) Encode() []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	n := f.Header.EncodeTo(buf)
	copy(buf[n:], f.Payload)
	return buf
}

// Decode parses a frame. The payload is copied out of data.
func Decode(data []byte) (*Frame, error) {
	f := &Frame{}
	n, err := f.Header.Decode(data)
	if err != nil {
		return nil, err
	}
	if len(data) > n {
		f.Payload = make([]byte, len(data)-n)
		copy(f.Payload, data[n:])
	}
	return f, nil
}

// Beacon advertises a coordinator's network.
type Beacon struct {
	ExtendedPANID uint64
	Channel       uint8
	PermitJoin    bool
}

// AssocRequest asks to join a network.
type AssocRequest struct {
	IEEEAddress uint64
	Capability  Capability
}

// AssocResponse answers an AssocRequest.
type AssocResponse struct {
	IEEEAddress  uint64
	ShortAddress uint16
	Status       AssocStatus
}

// Leave tells a device to leave, or announces that it left.
type Leave struct {
	IEEEAddress uint64
	Rejoin      bool
}

// DeviceAnnounce is broadcast by a device after joining or rebooting.
type DeviceAnnounce struct {
	IEEEAddress  uint64
	ShortAddress uint16
	Capability   Capability
}

// Data carries one ZCL frame addressed to an endpoint and cluster.
type Data struct {
	Endpoint uint8
	Profile  uint16
	Cluster  uint16
	ZCL      []byte
}

// Payload sizes.
const (
	beaconSize        = 8 + 1 + 1
	assocRequestSize  = IEEEAddressSize + 1
	assocResponseSize = IEEEAddressSize + 2 + 1
	leaveSize         = IEEEAddressSize + 1
	announceSize      = IEEEAddressSize + 2 + 1
	dataHeaderSize    = 1 + 2 + 2
)

// Encode returns the beacon payload.
func (b Beacon) Encode() []byte {
	buf := make([]byte, beaconSize)
	binary.LittleEndian.PutUint64(buf[0:8], b.ExtendedPANID)
	buf[8] = b.Channel
	if b.PermitJoin {
		buf[9] = 1
	}
	return buf
}

// DecodeBeacon parses a beacon payload.
func DecodeBeacon(p []byte) (Beacon, error) {
	if len(p) < beaconSize {
		return Beacon{}, ErrPayloadTooShort
	}
	return Beacon{
		ExtendedPANID: binary.LittleEndian.Uint64(p[0:8]),
		Channel:       p[8],
		PermitJoin:    p[9] != 0,
	}, nil
}

// Encode returns the association request payload.
func (r AssocRequest) Encode() []byte {
	buf := make([]byte, assocRequestSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.IEEEAddress)
	buf[8] = uint8(r.Capability)
	return buf
}

// DecodeAssocRequest parses an association request payload.
func DecodeAssocRequest(p []byte) (AssocRequest, error) {
	if len(p) < assocRequestSize {
		return AssocRequest{}, ErrPayloadTooShort
	}
	return AssocRequest{
		IEEEAddress: binary.LittleEndian.Uint64(p[0:8]),
		Capability:  Capability(p[8]),
	}, nil
}

// Encode returns the association response payload.
func (r AssocResponse) Encode() []byte {
	buf := make([]byte, assocResponseSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.IEEEAddress)
	binary.LittleEndian.PutUint16(buf[8:10], r.ShortAddress)
	buf[10] = uint8(r.Status)
	return buf
}

// DecodeAssocResponse parses an association response payload.
func DecodeAssocResponse(p []byte) (AssocResponse, error) {
	if len(p) < assocResponseSize {
		return AssocResponse{}, ErrPayloadTooShort
	}
	return AssocResponse{
		IEEEAddress:  binary.LittleEndian.Uint64(p[0:8]),
		ShortAddress: binary.LittleEndian.Uint16(p[8:10]),
		Status:       AssocStatus(p[10]),
	}, nil
}

// Encode returns the leave payload.
func (l Leave) Encode() []byte {
	buf := make([]byte, leaveSize)
	binary.LittleEndian.PutUint64(buf[0:8], l.IEEEAddress)
	if l.Rejoin {
		buf[8] = 1
	}
	return buf
}

// DecodeLeave parses a leave payload.
func DecodeLeave(p []byte) (Leave, error) {
	if len(p) < leaveSize {
		return Leave{}, ErrPayloadTooShort
	}
	return Leave{
		IEEEAddress: binary.LittleEndian.Uint64(p[0:8]),
		Rejoin:      p[8] != 0,
	}, nil
}

// Encode returns the device announce payload.
func (a DeviceAnnounce) Encode() []byte {
	buf := make([]byte, announceSize)
	binary.LittleEndian.PutUint64(buf[0:8], a.IEEEAddress)
	binary.LittleEndian.PutUint16(buf[8:10], a.ShortAddress)
	buf[10] = uint8(a.Capability)
	return buf
}

// DecodeDeviceAnnounce parses a device announce payload.
func DecodeDeviceAnnounce(p []byte) (DeviceAnnounce, error) {
	if len(p) < announceSize {
		return DeviceAnnounce{}, ErrPayloadTooShort
	}
	return DeviceAnnounce{
		IEEEAddress:  binary.LittleEndian.Uint64(p[0:8]),
		ShortAddress: binary.LittleEndian.Uint16(p[8:10]),
		Capability:   Capability(p[10]),
	}, nil
}

// Encode returns the data payload.
func (d Data) Encode() []byte {
	buf := make([]byte, dataHeaderSize+len(d.ZCL))
	buf[0] = d.Endpoint
	binary.LittleEndian.PutUint16(buf[1:3], d.Profile)
	binary.LittleEndian.PutUint16(buf[3:5], d.Cluster)
	copy(buf[dataHeaderSize:], d.ZCL)
	return buf
}

// DecodeData parses a data payload. ZCL aliases p.
func DecodeData(p []byte) (Data, error) {
	if len(p) < dataHeaderSize {
		return Data{}, ErrPayloadTooShort
	}
	return Data{
		Endpoint: p[0],
		Profile:  binary.LittleEndian.Uint16(p[1:3]),
		Cluster:  binary.LittleEndian.Uint16(p[3:5]),
		ZCL:      p[dataHeaderSize:],
	}, nil
}

// FormatIEEE renders an extended address the way sniffers show it.
func FormatIEEE(addr uint64) string {
	return fmt.Sprintf("0x%016X", addr)
}
