package pstore

import "errors"

// Sentinel errors returned by Store implementations, matching the
// conventions used throughout the gateway's other in-memory stores.
var (
	ErrNotFound      = errors.New("pstore: not found")
	ErrAlreadyExists = errors.New("pstore: already exists")
	ErrInvalid       = errors.New("pstore: invalid key or value")
)
