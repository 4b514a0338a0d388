package ports

import (
	"context"
	"time"

	"delivery-sequencer-service/internal/domain"
)

// FactQuery describes a tolerance-window lookup: a bounding box of
// ±Tolerance around each of the four coordinate axes.
type FactQuery struct {
	Origin      domain.Coordinate
	Destination domain.Coordinate
	Tolerance   float64
}

// Port: persistent storage for pairwise distance facts.
//
// The store is shared across all concurrent route computations. Facts are
// immutable apart from their last-used timestamp, so implementations need
// no locking beyond what their backend provides.
type FactStore interface {
	// Query returns the most-recently-used fact inside the bounding box,
	// or domain.ErrNotFound when no row matches.
	Query(ctx context.Context, q FactQuery) (domain.DistanceFact, error)

	// Insert persists a new fact and returns it with its assigned id.
	Insert(ctx context.Context, fact domain.DistanceFact) (domain.DistanceFact, error)

	// Touch bumps a fact's last-used timestamp. Best-effort: lookups that
	// fail to touch still succeed.
	Touch(ctx context.Context, id int64, usedAt time.Time) error

	// DeleteOlderThan removes facts whose last-used timestamp is before
	// cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteExcess removes oldest-by-last-used facts until at most
	// maxRecords remain and returns how many were removed.
	DeleteExcess(ctx context.Context, maxRecords int) (int, error)

	// Count returns the total number of stored facts.
	Count(ctx context.Context) (int, error)
}
