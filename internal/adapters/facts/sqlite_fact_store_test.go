package facts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
)

func newSqliteStore(t *testing.T) *SqliteFactStore {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// The in-memory database lives per connection.
	db.SetMaxOpenConns(1)

	if err := InitSchemaSQLite(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	return NewSqliteFactStore(db)
}

func seedFact(t *testing.T, store *SqliteFactStore, fact domain.DistanceFact) domain.DistanceFact {
	t.Helper()

	inserted, err := store.Insert(context.Background(), fact)
	if err != nil {
		t.Fatalf("insert fact: %v", err)
	}
	return inserted
}

func TestSqliteInsertAndBoxQuery(t *testing.T) {
	store := newSqliteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	origin := domain.Coordinate{Lat: -25.4284000, Lng: -49.2733000}
	destination := domain.Coordinate{Lat: -25.4300000, Lng: -49.2800000}

	inserted := seedFact(t, store, domain.DistanceFact{
		OriginAddress:      "Depot, Curitiba",
		Origin:             origin,
		DestinationAddress: "Stop A",
		Destination:        destination,
		DistanceMeters:     1200,
		DurationSeconds:    300,
		Polyline:           []domain.Coordinate{origin, destination},
		CreatedAt:          now,
		LastUsedAt:         now,
	})
	if inserted.ID == 0 {
		t.Fatal("insert must assign an id")
	}

	// Probe offset by half the tolerance on each axis.
	got, err := store.Query(ctx, ports.FactQuery{
		Origin:      domain.Coordinate{Lat: origin.Lat + 0.00005, Lng: origin.Lng - 0.00005},
		Destination: destination,
		Tolerance:   domain.Tolerance,
	})
	if err != nil {
		t.Fatalf("query within tolerance: %v", err)
	}

	if got.ID != inserted.ID || got.DistanceMeters != 1200 || got.DurationSeconds != 300 {
		t.Fatalf("got %+v, want the seeded fact", got)
	}
	if got.OriginAddress != "Depot, Curitiba" {
		t.Errorf("OriginAddress = %q", got.OriginAddress)
	}
	if len(got.Polyline) != 2 || got.Polyline[0] != origin {
		t.Errorf("polyline did not round-trip: %+v", got.Polyline)
	}
	if !got.LastUsedAt.Equal(now) {
		t.Errorf("LastUsedAt = %v, want %v", got.LastUsedAt, now)
	}

	// Outside the box.
	_, err = store.Query(ctx, ports.FactQuery{
		Origin:      domain.Coordinate{Lat: origin.Lat + 0.0005, Lng: origin.Lng},
		Destination: destination,
		Tolerance:   domain.Tolerance,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("query outside tolerance: err = %v, want ErrNotFound", err)
	}
}

func TestSqliteQueryPrefersMostRecentlyUsed(t *testing.T) {
	store := newSqliteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	origin := domain.Coordinate{Lat: 10, Lng: 20}
	destination := domain.Coordinate{Lat: 11, Lng: 21}

	seedFact(t, store, domain.DistanceFact{
		Origin: origin, Destination: destination,
		DistanceMeters: 1000, DurationSeconds: 100,
		CreatedAt: now.Add(-2 * time.Hour), LastUsedAt: now.Add(-2 * time.Hour),
	})
	fresh := seedFact(t, store, domain.DistanceFact{
		Origin: origin, Destination: destination,
		DistanceMeters: 1050, DurationSeconds: 110,
		CreatedAt: now.Add(-time.Hour), LastUsedAt: now.Add(-time.Minute),
	})

	got, err := store.Query(ctx, ports.FactQuery{Origin: origin, Destination: destination, Tolerance: domain.Tolerance})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != fresh.ID {
		t.Fatalf("got id %d, want %d (most recently used)", got.ID, fresh.ID)
	}
}

func TestSqliteTouch(t *testing.T) {
	store := newSqliteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	origin := domain.Coordinate{Lat: 1, Lng: 2}
	destination := domain.Coordinate{Lat: 3, Lng: 4}

	fact := seedFact(t, store, domain.DistanceFact{
		Origin: origin, Destination: destination,
		DistanceMeters: 500, DurationSeconds: 60,
		CreatedAt: now.Add(-time.Hour), LastUsedAt: now.Add(-time.Hour),
	})

	if err := store.Touch(ctx, fact.ID, now); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := store.Query(ctx, ports.FactQuery{Origin: origin, Destination: destination, Tolerance: domain.Tolerance})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.LastUsedAt.Equal(now) {
		t.Fatalf("LastUsedAt = %v, want %v after touch", got.LastUsedAt, now)
	}
}

func TestSqliteDeleteOlderThan(t *testing.T) {
	store := newSqliteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	seedFact(t, store, domain.DistanceFact{
		Origin: domain.Coordinate{Lat: 1, Lng: 1}, Destination: domain.Coordinate{Lat: 2, Lng: 2},
		DistanceMeters: 1, DurationSeconds: 1,
		CreatedAt: now.AddDate(0, 0, -40), LastUsedAt: now.AddDate(0, 0, -40),
	})
	seedFact(t, store, domain.DistanceFact{
		Origin: domain.Coordinate{Lat: 3, Lng: 3}, Destination: domain.Coordinate{Lat: 4, Lng: 4},
		DistanceMeters: 2, DurationSeconds: 2,
		CreatedAt: now, LastUsedAt: now,
	})

	deleted, err := store.DeleteOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestSqliteDeleteExcessTrimsOldest(t *testing.T) {
	store := newSqliteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	var ids []int64
	for i := 0; i < 5; i++ {
		fact := seedFact(t, store, domain.DistanceFact{
			Origin:      domain.Coordinate{Lat: float64(i), Lng: 0},
			Destination: domain.Coordinate{Lat: float64(i), Lng: 1},
			DistanceMeters: 100 * (i + 1), DurationSeconds: 10,
			CreatedAt:  now.Add(-time.Duration(5-i) * time.Hour),
			LastUsedAt: now.Add(-time.Duration(5-i) * time.Hour),
		})
		ids = append(ids, fact.ID)
	}

	deleted, err := store.DeleteExcess(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}

	// The two least-recently-used facts are gone; the rest survive.
	for i, id := range ids {
		_, err := store.Query(ctx, ports.FactQuery{
			Origin:      domain.Coordinate{Lat: float64(i), Lng: 0},
			Destination: domain.Coordinate{Lat: float64(i), Lng: 1},
			Tolerance:   domain.Tolerance,
		})
		if i < 2 && !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("fact id %d should have been evicted, err = %v", id, err)
		}
		if i >= 2 && err != nil {
			t.Errorf("fact id %d should have survived: %v", id, err)
		}
	}

	// No-op when already under the cap.
	deleted, err = store.DeleteExcess(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("deleted = %d, want 0 on second pass", deleted)
	}
}
