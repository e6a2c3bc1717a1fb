package datamodel

import "errors"

// Errors returned by datamodel operations.
var (
	// ErrEndpointNotFound indicates the requested endpoint does not exist.
	ErrEndpointNotFound = errors.New("endpoint not found")

	// ErrEndpointExists indicates an endpoint with the same ID already exists.
	ErrEndpointExists = errors.New("endpoint already exists")

	// ErrClusterNotFound indicates the requested cluster does not exist.
	ErrClusterNotFound = errors.New("cluster not found")

	// ErrClusterExists indicates a cluster with the same ID already exists.
	ErrClusterExists = errors.New("cluster already exists")

	// ErrAttributeNotFound indicates the requested attribute does not exist.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrAttributeNotReadable indicates the attribute does not support read access.
	ErrAttributeNotReadable = errors.New("attribute not readable")

	// ErrAttributeReadOnly indicates the cluster does not accept local updates
	// for the attribute.
	ErrAttributeReadOnly = errors.New("attribute is read-only")

	// ErrInvalidDataType indicates a value of the wrong type was supplied.
	ErrInvalidDataType = errors.New("invalid data type")

	// ErrConstraintError indicates a value outside the attribute's range.
	ErrConstraintError = errors.New("constraint error")
)
