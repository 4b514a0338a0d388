package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a cache or store miss. Misses are always safe;
	// callers fall through to the live collaborator.
	ErrNotFound = errors.New("not found")

	// ErrInvalidStop signals a stop without resolved or in-range
	// coordinates. Caller error, never retried.
	ErrInvalidStop = errors.New("invalid stop")

	// ErrDistanceUnavailable signals that the oracle exhausted its retry
	// budget for a required pairwise lookup. The whole sequencing call
	// fails; partial plans are never returned.
	ErrDistanceUnavailable = errors.New("distance unavailable")
)

// CollaboratorError is a well-formed error response from a geocoding,
// distance-matrix or directions collaborator (e.g. ZERO_RESULTS,
// OVER_QUERY_LIMIT). It is never retried locally — retrying a logical
// error cannot change the outcome — and keeps the upstream status for
// diagnostics.
type CollaboratorError struct {
	Status  string
	Message string
}

func (e *CollaboratorError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("collaborator error: %s", e.Status)
	}
	return fmt.Sprintf("collaborator error: %s: %s", e.Status, e.Message)
}
