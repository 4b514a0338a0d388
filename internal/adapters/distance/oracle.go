package distance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/atomic"

	"delivery-sequencer-service/internal/adapters/cache"
	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
)

const (
	directionsBurstSize = 512
	directionsBurstTTL  = 15 * time.Minute
)

// CachingOracle implements DistanceOracle on top of the pairwise cache and
// the live routing collaborator.
//
// GetDistance is cache-first: a hit never touches the collaborator, and a
// live result is written through to the cache before returning (a failed
// write is logged, never propagated — the value was already obtained).
// GetDirections is not cached by fact equality; only bursts of identical
// requests within a short window are collapsed in-process.
type CachingOracle struct {
	cache *cache.PairCache
	live  ports.RoutingCollaborator

	directions *expirable.LRU[string, ports.DirectionsResult]

	cacheHits       atomic.Int64
	liveCalls       atomic.Int64
	directionsCalls atomic.Int64
}

func NewCachingOracle(pairCache *cache.PairCache, live ports.RoutingCollaborator) *CachingOracle {
	return &CachingOracle{
		cache:      pairCache,
		live:       live,
		directions: expirable.NewLRU[string, ports.DirectionsResult](directionsBurstSize, nil, directionsBurstTTL),
	}
}

// GetDistance returns the pairwise distance, preferring cached facts.
func (o *CachingOracle) GetDistance(ctx context.Context, origin, destination domain.Coordinate) (ports.DistanceResult, error) {
	if !origin.Valid() || !destination.Valid() {
		return ports.DistanceResult{}, fmt.Errorf(
			"%w: coordinates out of range: %s -> %s",
			domain.ErrInvalidStop, origin, destination,
		)
	}

	fact, err := o.cache.Lookup(ctx, origin, destination)
	if err == nil {
		o.cacheHits.Inc()
		return ports.DistanceResult{
			DistanceMeters:  fact.DistanceMeters,
			DurationSeconds: fact.DurationSeconds,
		}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		// A degraded cache reads as a miss; the oracle stays correct.
		log.Printf("distance cache lookup failed: %v", err)
	}

	o.liveCalls.Inc()
	result, err := o.live.Distance(ctx, origin, destination)
	if err != nil {
		return ports.DistanceResult{}, o.mapLiveError("distance", origin, destination, err)
	}

	now := time.Now()
	storeErr := o.cache.Store(ctx, domain.DistanceFact{
		Origin:          origin,
		Destination:     destination,
		DistanceMeters:  result.DistanceMeters,
		DurationSeconds: result.DurationSeconds,
		CreatedAt:       now,
		LastUsedAt:      now,
	})
	if storeErr != nil {
		log.Printf("distance cache write failed: %v", storeErr)
	}

	return result, nil
}

// GetDirections returns full directions for one leg, collapsing retry
// bursts of the same request via a short-lived in-process cache.
func (o *CachingOracle) GetDirections(ctx context.Context, origin, destination domain.Coordinate) (ports.DirectionsResult, error) {
	if !origin.Valid() || !destination.Valid() {
		return ports.DirectionsResult{}, fmt.Errorf(
			"%w: coordinates out of range: %s -> %s",
			domain.ErrInvalidStop, origin, destination,
		)
	}

	key := domain.PairKey(origin.Rounded(), destination.Rounded())
	if result, ok := o.directions.Get(key); ok {
		o.cacheHits.Inc()
		return result, nil
	}

	o.directionsCalls.Inc()
	result, err := o.live.Directions(ctx, origin, destination)
	if err != nil {
		return ports.DirectionsResult{}, o.mapLiveError("directions", origin, destination, err)
	}

	o.directions.Add(key, result)
	return result, nil
}

// Stats snapshots the oracle's observability counters.
func (o *CachingOracle) Stats() ports.OracleStats {
	stats := ports.OracleStats{
		CacheHits:       o.cacheHits.Load(),
		LiveCalls:       o.liveCalls.Load(),
		DirectionsCalls: o.directionsCalls.Load(),
	}

	if rc, ok := o.live.(interface{ Retries() int64 }); ok {
		stats.Retries = rc.Retries()
	}

	return stats
}

// mapLiveError keeps collaborator errors intact and folds everything else
// (exhausted transport retries) into ErrDistanceUnavailable.
func (o *CachingOracle) mapLiveError(op string, origin, destination domain.Coordinate, err error) error {
	var ce *domain.CollaboratorError
	if errors.As(err, &ce) {
		return fmt.Errorf("%s %s -> %s: %w", op, origin, destination, err)
	}

	return fmt.Errorf("%w: %s %s -> %s: %v", domain.ErrDistanceUnavailable, op, origin, destination, err)
}
