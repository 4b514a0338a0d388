package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
)

// PairCache is the two-tier pairwise distance cache: a hot tier keyed by
// the exact-rounded coordinate pair, backed by the persistent fact store
// queried with a tolerance bounding box.
//
// The cache is a pure optimization. A miss is always safe, and a write
// failure never propagates to the caller's route computation.
type PairCache struct {
	store ports.FactStore
	hot   ports.HotTier
	now   func() time.Time
}

func NewPairCache(store ports.FactStore, hot ports.HotTier) *PairCache {
	return &PairCache{
		store: store,
		hot:   hot,
		now:   time.Now,
	}
}

// Lookup returns a fact for the pair, or domain.ErrNotFound.
//
// The hot tier is consulted first. On a persistent-store hit the hot tier
// is backfilled and the row's last-used timestamp is refreshed
// (best-effort; a failed refresh does not fail the lookup).
func (c *PairCache) Lookup(ctx context.Context, origin, destination domain.Coordinate) (domain.DistanceFact, error) {
	origin = origin.Rounded()
	destination = destination.Rounded()
	key := domain.PairKey(origin, destination)

	if r, ok := c.hot.Get(ctx, key); ok {
		return domain.DistanceFact{
			Origin:          origin,
			Destination:     destination,
			DistanceMeters:  r.DistanceMeters,
			DurationSeconds: r.DurationSeconds,
		}, nil
	}

	fact, err := c.store.Query(ctx, ports.FactQuery{
		Origin:      origin,
		Destination: destination,
		Tolerance:   domain.Tolerance,
	})
	if err != nil {
		return domain.DistanceFact{}, err
	}

	c.hot.Set(ctx, key, ports.DistanceResult{
		DistanceMeters:  fact.DistanceMeters,
		DurationSeconds: fact.DurationSeconds,
	})

	if err := c.store.Touch(ctx, fact.ID, c.now()); err != nil {
		log.Printf("fact touch failed: id=%d err=%v", fact.ID, err)
	}

	return fact, nil
}

// Store writes a fact to the persistent store; a successful write also
// populates the hot tier. Coordinates are rounded to the persistence
// precision before writing so the bounding-box filters stay well-defined.
func (c *PairCache) Store(ctx context.Context, fact domain.DistanceFact) error {
	fact.Origin = fact.Origin.Rounded()
	fact.Destination = fact.Destination.Rounded()

	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = c.now()
	}
	if fact.LastUsedAt.IsZero() {
		fact.LastUsedAt = fact.CreatedAt
	}

	saved, err := c.store.Insert(ctx, fact)
	if err != nil {
		return fmt.Errorf("store distance fact: %w", err)
	}

	c.hot.Set(ctx, domain.PairKey(saved.Origin, saved.Destination), ports.DistanceResult{
		DistanceMeters:  saved.DistanceMeters,
		DurationSeconds: saved.DurationSeconds,
	})

	return nil
}

// EvictOlderThan removes facts last used before now−age.
func (c *PairCache) EvictOlderThan(ctx context.Context, age time.Duration) (int, error) {
	return c.store.DeleteOlderThan(ctx, c.now().Add(-age))
}

// EvictExcess trims the store down to maxRecords, oldest-by-last-used first.
func (c *PairCache) EvictExcess(ctx context.Context, maxRecords int) (int, error) {
	return c.store.DeleteExcess(ctx, maxRecords)
}
