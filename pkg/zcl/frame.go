package zcl

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// FrameType selects between profile-wide and cluster-specific commands.
type FrameType uint8

const (
	// FrameTypeGlobal marks a command acting across the entire profile.
	FrameTypeGlobal FrameType = 0x00
	// FrameTypeCluster marks a command specific to the addressed cluster.
	FrameTypeCluster FrameType = 0x01
)

// Direction is the direction bit of the frame control field.
type Direction uint8

const (
	// DirectionToServer is sent by the client side of a cluster.
	DirectionToServer Direction = 0
	// DirectionToClient is sent by the server side of a cluster.
	DirectionToClient Direction = 1
)

// CommandID identifies a ZCL command.
type CommandID uint8

// General (profile-wide) command identifiers.
const (
	CmdReadAttributes         CommandID = 0x00
	CmdReadAttributesResponse CommandID = 0x01
	CmdWriteAttributes        CommandID = 0x02
	CmdConfigureReporting     CommandID = 0x06
	CmdReportAttributes       CommandID = 0x0A
	CmdDefaultResponse        CommandID = 0x0B
)

// String returns the command name.
func (c CommandID) String() string {
	switch c {
	case CmdReadAttributes:
		return "ReadAttributes"
	case CmdReadAttributesResponse:
		return "ReadAttributesResponse"
	case CmdWriteAttributes:
		return "WriteAttributes"
	case CmdConfigureReporting:
		return "ConfigureReporting"
	case CmdReportAttributes:
		return "ReportAttributes"
	case CmdDefaultResponse:
		return "DefaultResponse"
	default:
		return fmt.Sprintf("Command(0x%02X)", uint8(c))
	}
}

// Frame control bits.
const (
	fcFrameTypeMask          = 0x03
	fcManufacturerSpecific   = 0x04
	fcDirectionToClient      = 0x08
	fcDisableDefaultResponse = 0x10
)

// Header is the ZCL frame header (ZCL 2.4.1).
type Header struct {
	FrameType              FrameType
	ManufacturerSpecific   bool
	ManufacturerCode       uint16
	Direction              Direction
	DisableDefaultResponse bool
	Sequence               uint8
	Command                CommandID
}

// Frame is a complete ZCL frame.
type Frame struct {
	Header
	Payload []byte
}

// Encode serializes the frame.
func (f *Frame) Encode() []byte {
	fc := uint8(f.FrameType) & fcFrameTypeMask
	if f.ManufacturerSpecific {
		fc |= fcManufacturerSpecific
	}
	if f.Direction == DirectionToClient {
		fc |= fcDirectionToClient
	}
	if f.DisableDefaultResponse {
		fc |= fcDisableDefaultResponse
	}

	out := make([]byte, 0, 5+len(f.Payload))
	out = append(out, fc)
	if f.ManufacturerSpecific {
		out = binary.LittleEndian.AppendUint16(out, f.ManufacturerCode)
	}
	out = append(out, f.Sequence, uint8(f.Command))
	return append(out, f.Payload...)
}

// DecodeFrame parses a ZCL frame. The payload aliases data.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < 3 {
		return nil, ErrShortFrame
	}
	fc := data[0]
	f := &Frame{}
	f.FrameType = FrameType(fc & fcFrameTypeMask)
	f.ManufacturerSpecific = fc&fcManufacturerSpecific != 0
	if fc&fcDirectionToClient != 0 {
		f.Direction = DirectionToClient
	}
	f.DisableDefaultResponse = fc&fcDisableDefaultResponse != 0

	pos := 1
	if f.ManufacturerSpecific {
		if len(data) < 5 {
			return nil, ErrShortFrame
		}
		f.ManufacturerCode = binary.LittleEndian.Uint16(data[1:3])
		pos = 3
	}
	f.Sequence = data[pos]
	f.Command = CommandID(data[pos+1])
	f.Payload = data[pos+2:]
	return f, nil
}

// Status is a ZCL status code (ZCL 2.6.3).
type Status uint8

// Status codes used by the node.
const (
	StatusSuccess              Status = 0x00
	StatusFailure              Status = 0x01
	StatusUnsupClusterCommand  Status = 0x81
	StatusUnsupGeneralCommand  Status = 0x82
	StatusUnsupportedAttribute Status = 0x86
	StatusInvalidValue         Status = 0x87
	StatusInvalidDataType      Status = 0x8D
	StatusUnsupportedCluster   Status = 0xC3
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailure:
		return "FAILURE"
	case StatusUnsupClusterCommand:
		return "UNSUP_CLUSTER_COMMAND"
	case StatusUnsupGeneralCommand:
		return "UNSUP_GENERAL_COMMAND"
	case StatusUnsupportedAttribute:
		return "UNSUPPORTED_ATTRIBUTE"
	case StatusInvalidValue:
		return "INVALID_VALUE"
	case StatusInvalidDataType:
		return "INVALID_DATA_TYPE"
	case StatusUnsupportedCluster:
		return "UNSUPPORTED_CLUSTER"
	default:
		return fmt.Sprintf("STATUS(0x%02X)", uint8(s))
	}
}

// AttributeRecord is one attribute in a Report Attributes command.
type AttributeRecord struct {
	ID    AttributeID
	Value Value
}

// ReadAttributeStatus is one entry of a Read Attributes Response.
// Value is only present when Status is StatusSuccess.
type ReadAttributeStatus struct {
	ID     AttributeID
	Status Status
	Value  Value
}

// EncodeReadAttributes encodes the payload of a Read Attributes command.
func EncodeReadAttributes(ids []AttributeID) []byte {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, id := range ids {
		_ = w.PutAttributeID(id)
	}
	return buf.Bytes()
}

// DecodeReadAttributes decodes the payload of a Read Attributes command.
func DecodeReadAttributes(payload []byte) ([]AttributeID, error) {
	if len(payload)%2 != 0 {
		return nil, ErrShortFrame
	}
	ids := make([]AttributeID, 0, len(payload)/2)
	for i := 0; i < len(payload); i += 2 {
		ids = append(ids, AttributeID(binary.LittleEndian.Uint16(payload[i:])))
	}
	return ids, nil
}

// EncodeReportAttributes encodes the payload of a Report Attributes command.
func EncodeReportAttributes(records []AttributeRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range records {
		if err := w.PutAttributeID(rec.ID); err != nil {
			return nil, err
		}
		if err := w.PutTypedValue(rec.Value); err != nil {
			return nil, fmt.Errorf("attribute 0x%04X: %w", uint16(rec.ID), err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeReportAttributes decodes the payload of a Report Attributes command.
func DecodeReportAttributes(payload []byte) ([]AttributeRecord, error) {
	br := bytes.NewReader(payload)
	r := NewReader(br)
	var records []AttributeRecord
	for br.Len() > 0 {
		id, err := r.AttributeID()
		if err != nil {
			return nil, err
		}
		v, err := r.TypedValue()
		if err != nil {
			return nil, fmt.Errorf("attribute 0x%04X: %w", uint16(id), err)
		}
		records = append(records, AttributeRecord{ID: id, Value: v})
	}
	return records, nil
}

// EncodeReadAttributesResponse encodes the payload of a Read Attributes Response.
func EncodeReadAttributesResponse(records []ReadAttributeStatus) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, rec := range records {
		if err := w.PutAttributeID(rec.ID); err != nil {
			return nil, err
		}
		if err := w.PutUint8(uint8(rec.Status)); err != nil {
			return nil, err
		}
		if rec.Status != StatusSuccess {
			continue
		}
		if err := w.PutTypedValue(rec.Value); err != nil {
			return nil, fmt.Errorf("attribute 0x%04X: %w", uint16(rec.ID), err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeReadAttributesResponse decodes the payload of a Read Attributes Response.
func DecodeReadAttributesResponse(payload []byte) ([]ReadAttributeStatus, error) {
	br := bytes.NewReader(payload)
	r := NewReader(br)
	var records []ReadAttributeStatus
	for br.Len() > 0 {
		id, err := r.AttributeID()
		if err != nil {
			return nil, err
		}
		st, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		rec := ReadAttributeStatus{ID: id, Status: Status(st)}
		if rec.Status == StatusSuccess {
			if rec.Value, err = r.TypedValue(); err != nil {
				return nil, fmt.Errorf("attribute 0x%04X: %w", uint16(id), err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
