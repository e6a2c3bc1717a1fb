package shtc3

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification with errors.Is.
var (
	// ErrBus matches every *BusError.
	ErrBus = errors.New("shtc3: bus error")

	// ErrIntegrity matches every *IntegrityError.
	ErrIntegrity = errors.New("shtc3: checksum mismatch")

	// ErrConfiguration matches every *ConfigurationError.
	ErrConfiguration = errors.New("shtc3: invalid configuration")
)

// BusError reports a failed transfer on the two-wire bus.
type BusError struct {
	// Op is the step that failed: "open", "wake", "measure", "read", "sleep".
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("shtc3: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying bus error.
func (e *BusError) Unwrap() error { return e.Err }

// Is reports whether target is ErrBus.
func (e *BusError) Is(target error) bool { return target == ErrBus }

// IntegrityError reports a measurement frame whose checksum did not match.
type IntegrityError struct {
	// Frame is the raw frame as read.
	Frame [FrameSize]byte

	// Word is 0 for the temperature word, 1 for the humidity word.
	Word int

	Want, Got byte
}

func (e *IntegrityError) Error() string {
	name := "temperature"
	if e.Word == 1 {
		name = "humidity"
	}
	return fmt.Sprintf("shtc3: %s checksum 0x%02X, computed 0x%02X (frame % X)",
		name, e.Got, e.Want, e.Frame[:])
}

// Is reports whether target is ErrIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// ConfigurationError reports an unusable driver configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "shtc3: configuration: " + e.Reason
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
