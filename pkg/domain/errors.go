package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports client-side input problems detected before any
// network call. The caller can correct the input and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a record absent from both cache and remote service.
type NotFoundError struct {
	ID         int64
	Identifier string
}

func (e NotFoundError) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("asset %q not found", e.Identifier)
	}
	return fmt.Sprintf("asset %d not found", e.ID)
}

// TransportError reports a network or remote failure, carrying the HTTP
// status when one was received (zero when the request never completed).
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: remote returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }

// RowError describes one failed row of a bulk import.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// JobFailedError reports a terminal bulk-job failure with per-row detail.
type JobFailedError struct {
	JobID string
	Rows  []RowError
}

func (e JobFailedError) Error() string {
	return fmt.Sprintf("bulk job %s failed with %d row errors", e.JobID, len(e.Rows))
}

// ErrCorruptSnapshot marks a persisted snapshot that cannot be decoded. It is
// internal to the persistence bridge: a corrupt snapshot is treated as no
// snapshot and never surfaced to callers.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")
