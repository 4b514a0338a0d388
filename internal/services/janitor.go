package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"delivery-sequencer-service/internal/adapters/cache"
)

const (
	DefaultRetentionDays = 30
	DefaultMaxRecords    = 10000
)

// Result of one cleanup pass over the fact store.
type CleanupReport struct {
	EvictedByAge      int
	EvictedByCapacity int
}

// Janitor trims the persistent fact store: first by age, then by capacity.
// Cleanup is idempotent and safe to run concurrently with lookups —
// evicting a fact never invalidates a result already returned.
type Janitor struct {
	cache *cache.PairCache
}

func NewJanitor(pairCache *cache.PairCache) *Janitor {
	return &Janitor{cache: pairCache}
}

// RunCleanup evicts facts unused for retentionDays, then trims the store
// to maxRecords (oldest-by-last-used first). Non-positive arguments fall
// back to the defaults.
func (j *Janitor) RunCleanup(ctx context.Context, retentionDays, maxRecords int) (CleanupReport, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}

	var report CleanupReport

	byAge, err := j.cache.EvictOlderThan(ctx, time.Duration(retentionDays)*24*time.Hour)
	if err != nil {
		return report, fmt.Errorf("cleanup: evict by age: %w", err)
	}
	report.EvictedByAge = byAge

	byCapacity, err := j.cache.EvictExcess(ctx, maxRecords)
	if err != nil {
		return report, fmt.Errorf("cleanup: evict by capacity: %w", err)
	}
	report.EvictedByCapacity = byCapacity

	log.Printf("cache cleanup: evicted_by_age=%d evicted_by_capacity=%d retention_days=%d max_records=%d",
		report.EvictedByAge, report.EvictedByCapacity, retentionDays, maxRecords)

	return report, nil
}
