package ports

import (
	"context"

	"delivery-sequencer-service/internal/domain"
)

// Distance and travel duration between two coordinates.
type DistanceResult struct {
	DistanceMeters  int
	DurationSeconds int
}

// Full directions between two coordinates, including the road polyline.
type DirectionsResult struct {
	DistanceMeters  int
	DurationSeconds int
	Polyline        []domain.Coordinate
	StartAddress    string
	EndAddress      string
}

// Counters exposed for observability; not part of the correctness contract.
type OracleStats struct {
	CacheHits       int64
	LiveCalls       int64
	DirectionsCalls int64
	Retries         int64
}

// Contract for retrieving pairwise travel metrics between coordinates.
type DistanceOracle interface {
	// Return travel distance and duration between two coordinates,
	// consulting the pairwise cache before any live call.
	GetDistance(ctx context.Context, origin, destination domain.Coordinate) (DistanceResult, error)

	// Return full directions for one leg. Not cached by fact equality;
	// only bursts of identical requests are collapsed in-process.
	GetDirections(ctx context.Context, origin, destination domain.Coordinate) (DirectionsResult, error)
}

// Contract for the external collaborators the oracle wraps.
type RoutingCollaborator interface {
	Distance(ctx context.Context, origin, destination domain.Coordinate) (DistanceResult, error)
	Directions(ctx context.Context, origin, destination domain.Coordinate) (DirectionsResult, error)
}
