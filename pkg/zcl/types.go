// Package zcl implements the subset of the Zigbee Cluster Library wire
// format used by the climate node: typed attribute values, the general
// command frame header and the Read/Report Attributes commands.
//
// All multi-byte values are little-endian on the wire.
package zcl

import (
	"fmt"
	"math"
)

// ClusterID is a 16-bit cluster identifier.
type ClusterID uint16

// AttributeID is a 16-bit attribute identifier.
type AttributeID uint16

// DataType identifies the encoding of an attribute value (ZCL 2.6.2).
type DataType uint8

// Supported data types.
const (
	TypeNoData     DataType = 0x00
	TypeBool       DataType = 0x10
	TypeBitmap8    DataType = 0x18
	TypeUint8      DataType = 0x20
	TypeUint16     DataType = 0x21
	TypeInt16      DataType = 0x29
	TypeEnum8      DataType = 0x30
	TypeCharString DataType = 0x42
)

// String returns the ZCL name of the data type.
func (t DataType) String() string {
	switch t {
	case TypeNoData:
		return "nodata"
	case TypeBool:
		return "bool"
	case TypeBitmap8:
		return "map8"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeInt16:
		return "int16"
	case TypeEnum8:
		return "enum8"
	case TypeCharString:
		return "string"
	default:
		return fmt.Sprintf("type(0x%02X)", uint8(t))
	}
}

// Size returns the fixed encoded size of the type in bytes,
// or -1 for variable-length types.
func (t DataType) Size() int {
	switch t {
	case TypeNoData:
		return 0
	case TypeBool, TypeBitmap8, TypeUint8, TypeEnum8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	default:
		return -1
	}
}

// IsSupported reports whether the codec can encode and decode the type.
func (t DataType) IsSupported() bool {
	return t.Size() >= 0 || t == TypeCharString
}

// IsAnalog reports whether the type is an analog (numeric) type.
// Reportable change only applies to analog types.
func (t DataType) IsAnalog() bool {
	switch t {
	case TypeUint8, TypeUint16, TypeInt16:
		return true
	default:
		return false
	}
}

// Invalid ("non-value") markers for the numeric types (ZCL 2.6.2).
const (
	InvalidUint8  uint8  = 0xFF
	InvalidUint16 uint16 = 0xFFFF
	InvalidInt16  int16  = math.MinInt16
)

// MaxStringLength is the longest character string the codec accepts.
// 0xFF is reserved as the invalid length marker.
const MaxStringLength = 0xFE
