package zcl

import (
	"encoding/binary"
	"io"
)

// Writer encodes ZCL elements to an io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// PutUint8 writes a single byte.
func (w *Writer) PutUint8(v uint8) error {
	_, err := w.w.Write([]byte{v})
	return err
}

// PutUint16 writes a little-endian 16-bit value.
func (w *Writer) PutUint16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.w.Write(buf[:])
	return err
}

// PutUint64 writes a little-endian 64-bit value.
func (w *Writer) PutUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.w.Write(buf[:])
	return err
}

// PutAttributeID writes an attribute identifier.
func (w *Writer) PutAttributeID(id AttributeID) error {
	return w.PutUint16(uint16(id))
}

// PutValue writes the data portion of a value, without its type octet.
func (w *Writer) PutValue(v Value) error {
	switch v.Type {
	case TypeNoData:
		return nil
	case TypeBool, TypeBitmap8, TypeUint8, TypeEnum8:
		return w.PutUint8(uint8(v.raw))
	case TypeUint16, TypeInt16:
		return w.PutUint16(uint16(v.raw))
	case TypeCharString:
		if len(v.str) > MaxStringLength {
			return ErrStringTooLong
		}
		if err := w.PutUint8(uint8(len(v.str))); err != nil {
			return err
		}
		_, err := io.WriteString(w.w, v.str)
		return err
	default:
		return ErrUnsupportedType
	}
}

// PutTypedValue writes the type octet followed by the value data.
func (w *Writer) PutTypedValue(v Value) error {
	if !v.Type.IsSupported() {
		return ErrUnsupportedType
	}
	if err := w.PutUint8(uint8(v.Type)); err != nil {
		return err
	}
	return w.PutValue(v)
}
