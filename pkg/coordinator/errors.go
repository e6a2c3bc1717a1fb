package coordinator

import "errors"

// Coordinator errors.
var (
	ErrNoConn          = errors.New("coordinator: radio connection is required")
	ErrNotStarted      = errors.New("coordinator: not started")
	ErrUnknownDevice   = errors.New("coordinator: unknown device")
	ErrNetworkFull     = errors.New("coordinator: no free short address")
	ErrResponseTimeout = errors.New("coordinator: no response from device")
	ErrCommandFailed   = errors.New("coordinator: device rejected command")
)
