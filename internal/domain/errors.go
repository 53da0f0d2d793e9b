package domain

import "errors"

var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidKey signals a malformed record key.
	ErrInvalidKey = errors.New("invalid key")
	// ErrInvalidRecord signals a record that cannot be stored.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrUnknownFilter signals a filter name missing from the registry.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrNotImplemented signals an operation the running configuration does not provide.
	ErrNotImplemented = errors.New("not implemented")
	// ErrDuplicateFilter signals a second registration under the same name.
	ErrDuplicateFilter = errors.New("duplicate filter")
)
