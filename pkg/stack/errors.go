package stack

import "errors"

// Stack errors.
var (
	ErrNoConn          = errors.New("stack: radio connection is required")
	ErrNoCoordinator   = errors.New("stack: coordinator address is required")
	ErrNoStorage       = errors.New("stack: storage is required")
	ErrNoNode          = errors.New("stack: attribute node is required")
	ErrNotRunning      = errors.New("stack: not running")
	ErrAlreadyRunning  = errors.New("stack: already running")
	ErrSteeringActive  = errors.New("stack: network steering already in progress")
	ErrUnsupportedMode = errors.New("stack: unsupported commissioning mode")
	ErrInvalidTxPower  = errors.New("stack: transmit power out of range")
	ErrNotJoined       = errors.New("stack: not joined to a network")
)
