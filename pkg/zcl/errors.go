package zcl

import "errors"

// Codec errors.
var (
	// ErrUnsupportedType is returned for data types the codec does not implement.
	ErrUnsupportedType = errors.New("zcl: unsupported data type")

	// ErrTypeMismatch is returned when a value is accessed as the wrong type.
	ErrTypeMismatch = errors.New("zcl: type mismatch")

	// ErrStringTooLong is returned when a character string exceeds MaxStringLength.
	ErrStringTooLong = errors.New("zcl: string too long")

	// ErrShortFrame is returned when a frame ends before a complete element.
	ErrShortFrame = errors.New("zcl: frame too short")

	// ErrUnexpectedCommand is returned when a frame carries a different command
	// than the decoder expects.
	ErrUnexpectedCommand = errors.New("zcl: unexpected command")
)
