package zcl

import (
	"fmt"
	"strconv"
)

// Value is a typed attribute value.
// Numeric payloads are held in raw; signed types are stored sign-extended.
type Value struct {
	Type DataType
	raw  int64
	str  string
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	var raw int64
	if v {
		raw = 1
	}
	return Value{Type: TypeBool, raw: raw}
}

// Bitmap8 returns an 8-bit bitmap value.
func Bitmap8(v uint8) Value {
	return Value{Type: TypeBitmap8, raw: int64(v)}
}

// Uint8 returns an unsigned 8-bit value.
func Uint8(v uint8) Value {
	return Value{Type: TypeUint8, raw: int64(v)}
}

// Uint16 returns an unsigned 16-bit value.
func Uint16(v uint16) Value {
	return Value{Type: TypeUint16, raw: int64(v)}
}

// Int16 returns a signed 16-bit value.
func Int16(v int16) Value {
	return Value{Type: TypeInt16, raw: int64(v)}
}

// Enum8 returns an 8-bit enumeration value.
func Enum8(v uint8) Value {
	return Value{Type: TypeEnum8, raw: int64(v)}
}

// CharString returns a character string value.
func CharString(s string) Value {
	return Value{Type: TypeCharString, str: s}
}

// Int returns the value as a signed integer.
// Fails for non-numeric types.
func (v Value) Int() (int64, error) {
	switch v.Type {
	case TypeBool, TypeBitmap8, TypeUint8, TypeUint16, TypeInt16, TypeEnum8:
		return v.raw, nil
	default:
		return 0, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, v.Type)
	}
}

// Uint returns the value as an unsigned integer.
// Fails for signed types holding a negative value and for non-numeric types.
func (v Value) Uint() (uint64, error) {
	n, err := v.Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative %s value", ErrTypeMismatch, v.Type)
	}
	return uint64(n), nil
}

// AsBool returns the value of a boolean attribute.
func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool {
		return false, fmt.Errorf("%w: %s is not bool", ErrTypeMismatch, v.Type)
	}
	return v.raw != 0, nil
}

// Str returns the value of a character string attribute.
func (v Value) Str() (string, error) {
	if v.Type != TypeCharString {
		return "", fmt.Errorf("%w: %s is not a string", ErrTypeMismatch, v.Type)
	}
	return v.str, nil
}

// IsValid reports whether the value holds a real measurement
// rather than the type's invalid marker.
func (v Value) IsValid() bool {
	switch v.Type {
	case TypeUint8:
		return uint8(v.raw) != InvalidUint8
	case TypeUint16:
		return uint16(v.raw) != InvalidUint16
	case TypeInt16:
		return int16(v.raw) != InvalidInt16
	default:
		return true
	}
}

// Equal reports whether two values have the same type and content.
func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && v.raw == o.raw && v.str == o.str
}

// String formats the value for logs.
func (v Value) String() string {
	switch v.Type {
	case TypeCharString:
		return strconv.Quote(v.str)
	case TypeBool:
		return strconv.FormatBool(v.raw != 0)
	case TypeNoData:
		return "<nodata>"
	default:
		return fmt.Sprintf("%s(%d)", v.Type, v.raw)
	}
}
