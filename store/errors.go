package store

import "errors"

var (
	// ErrNotFound is returned when no record exists under the key.
	ErrNotFound = errors.New("store: record not found")

	// ErrAlreadyExists is returned when Create targets an existing key.
	ErrAlreadyExists = errors.New("store: record already exists")

	// ErrReservedAttribute is returned when attributes use a key attribute name.
	ErrReservedAttribute = errors.New("store: reserved attribute name")

	// ErrInvalidKey is returned for an empty partition or row key.
	ErrInvalidKey = errors.New("store: partition and row keys must be non-empty")

	// ErrUnsupportedValue is returned for attribute values outside string, bool, float64 and nil.
	ErrUnsupportedValue = errors.New("store: unsupported attribute value")
)
