package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"delivery-sequencer-service/internal/ports"
)

const (
	hotTierSize = 4096
	hotTierTTL  = 24 * time.Hour
)

// In-process hot tier: an expiring LRU keyed by the exact-rounded
// coordinate pair. Non-blocking; entries age out after 24h.
type MemoryTier struct {
	lru *expirable.LRU[string, ports.DistanceResult]
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{
		lru: expirable.NewLRU[string, ports.DistanceResult](hotTierSize, nil, hotTierTTL),
	}
}

func (m *MemoryTier) Get(_ context.Context, key string) (ports.DistanceResult, bool) {
	return m.lru.Get(key)
}

func (m *MemoryTier) Set(_ context.Context, key string, value ports.DistanceResult) {
	m.lru.Add(key, value)
}
