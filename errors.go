package livewall

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity or key does not exist.
	ErrNotFound = errors.New("livewall: not found")

	// ErrForbidden is returned when a presented bearer key does not match.
	ErrForbidden = errors.New("livewall: forbidden")

	// ErrConflict is returned when a create hits an existing key or a
	// transition is not allowed from the current state.
	ErrConflict = errors.New("livewall: conflict")

	// ErrInvalidInput is returned for malformed request data.
	ErrInvalidInput = errors.New("livewall: invalid input")

	// ErrPartialWrite is returned when only some of the records backing one
	// logical entity were written. The written records are not rolled back.
	ErrPartialWrite = errors.New("livewall: partial write")

	// ErrUpstreamUnavailable is returned when an external gateway fails.
	ErrUpstreamUnavailable = errors.New("livewall: upstream unavailable")
)

// PartialWriteError reports a multi-record write that stopped part way.
type PartialWriteError struct {
	// Entity is the logical entity type, e.g. "user".
	Entity string

	// Written lists the keys that were stored before the failure.
	Written []string

	// Failed is the key whose write failed.
	Failed string

	Cause error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("livewall: partial write of %s (written %v, failed %s): %v",
		e.Entity, e.Written, e.Failed, e.Cause)
}

func (e *PartialWriteError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrPartialWrite) match.
func (e *PartialWriteError) Is(target error) bool { return target == ErrPartialWrite }

// UpstreamError wraps a failure of an external collaborator.
type UpstreamError struct {
	// Op names the failing call, e.g. "blob.store".
	Op    string
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("livewall: %s: %v", e.Op, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrUpstreamUnavailable) match.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// Upstream wraps err as an UpstreamError for op. It returns nil for a nil err.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Cause: err}
}
