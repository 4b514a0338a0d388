package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"delivery-sequencer-service/internal/ports"
)

func TestRedisTierRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)

	tier, err := NewRedisTier("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	key := "-25.4284|-49.2733|-25.4300|-49.2800"
	want := ports.DistanceResult{DistanceMeters: 1200, DurationSeconds: 300}

	if _, ok := tier.Get(ctx, key); ok {
		t.Fatal("expected a miss before any write")
	}

	tier.Set(ctx, key, want)

	got, ok := tier.Get(ctx, key)
	if !ok {
		t.Fatal("expected a hit after the write")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestRedisTierExpiry(t *testing.T) {
	srv := miniredis.RunT(t)

	tier, err := NewRedisTier("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	tier.Set(ctx, "k", ports.DistanceResult{DistanceMeters: 1})

	srv.FastForward(hotTierTTL)

	if _, ok := tier.Get(ctx, "k"); ok {
		t.Fatal("entry must expire after the tier TTL")
	}
}

func TestRedisTierUnavailableReadsAsMiss(t *testing.T) {
	srv := miniredis.RunT(t)

	tier, err := NewRedisTier("redis://" + srv.Addr())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	tier.Set(ctx, "k", ports.DistanceResult{DistanceMeters: 1})
	srv.Close()

	if _, ok := tier.Get(ctx, "k"); ok {
		t.Fatal("a failed backend must degrade to a miss")
	}
}
