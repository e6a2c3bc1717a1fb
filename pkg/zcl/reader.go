package zcl

import (
	"encoding/binary"
	"errors"
	"io"
)

// Reader decodes ZCL elements from an io.Reader.
type Reader struct {
	r io.Reader
}

// NewReader creates a new Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(r.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrShortFrame
		}
		return err
	}
	return nil
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() (uint8, error) {
	var buf [1]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// Uint16 reads a little-endian 16-bit value.
func (r *Reader) Uint16() (uint16, error) {
	var buf [2]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// Uint64 reads a little-endian 64-bit value.
func (r *Reader) Uint64() (uint64, error) {
	var buf [8]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// AttributeID reads an attribute identifier.
func (r *Reader) AttributeID() (AttributeID, error) {
	v, err := r.Uint16()
	return AttributeID(v), err
}

// Value reads the data portion of a value of the given type.
func (r *Reader) Value(t DataType) (Value, error) {
	switch t {
	case TypeNoData:
		return Value{Type: TypeNoData}, nil
	case TypeBool, TypeBitmap8, TypeUint8, TypeEnum8:
		b, err := r.Uint8()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: t, raw: int64(b)}, nil
	case TypeUint16:
		v, err := r.Uint16()
		if err != nil {
			return Value{}, err
		}
		return Uint16(v), nil
	case TypeInt16:
		v, err := r.Uint16()
		if err != nil {
			return Value{}, err
		}
		return Int16(int16(v)), nil
	case TypeCharString:
		n, err := r.Uint8()
		if err != nil {
			return Value{}, err
		}
		if n == 0xFF {
			// Invalid string marker; no data follows.
			return CharString(""), nil
		}
		buf := make([]byte, n)
		if err := r.readFull(buf); err != nil {
			return Value{}, err
		}
		return CharString(string(buf)), nil
	default:
		return Value{}, ErrUnsupportedType
	}
}

// TypedValue reads a type octet followed by the value data.
func (r *Reader) TypedValue() (Value, error) {
	t, err := r.Uint8()
	if err != nil {
		return Value{}, err
	}
	return r.Value(DataType(t))
}
