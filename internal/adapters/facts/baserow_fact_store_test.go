package facts

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
)

func newBaserowStore(t *testing.T, baseURL string) *BaserowFactStore {
	t.Helper()

	store, err := NewBaserowFactStore(baseURL, "test-token", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store
}

func TestBaserowRowMappingRoundTrip(t *testing.T) {
	origin := domain.Coordinate{Lat: -25.4284, Lng: -49.2733}
	destination := domain.Coordinate{Lat: -25.4300, Lng: -49.2800}

	fact := domain.DistanceFact{
		OriginAddress:      "Depot, Curitiba",
		Origin:             origin,
		DestinationAddress: "Stop A",
		Destination:        destination,
		DistanceMeters:     1200,
		DurationSeconds:    300,
		Polyline:           []domain.Coordinate{origin, destination},
		CreatedAt:          time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		LastUsedAt:         time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
	}

	row, err := factToRow(fact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Decimals cross the wire as 7-digit strings, dates as RFC3339.
	if row.OriginLat != "-25.4284000" || row.OriginLng != "-49.2733000" {
		t.Errorf("origin = %q,%q, want 7-decimal strings", row.OriginLat, row.OriginLng)
	}
	if row.LastUsedAt != "2026-08-20T09:30:00Z" {
		t.Errorf("LastUsedAt = %q", row.LastUsedAt)
	}

	got, err := rowToFact(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Origin != origin || got.Destination != destination {
		t.Errorf("coordinates did not round-trip: %+v", got)
	}
	if got.DistanceMeters != 1200 || got.DurationSeconds != 300 {
		t.Errorf("metrics did not round-trip: %+v", got)
	}
	if !got.CreatedAt.Equal(fact.CreatedAt) || !got.LastUsedAt.Equal(fact.LastUsedAt) {
		t.Errorf("timestamps did not round-trip: %v / %v", got.CreatedAt, got.LastUsedAt)
	}
	if len(got.Polyline) != 2 || got.Polyline[0] != origin {
		t.Errorf("polyline did not round-trip: %+v", got.Polyline)
	}
}

func TestBaserowQueryBuildsToleranceFilters(t *testing.T) {
	var (
		gotPath  string
		gotAuth  string
		gotQuery url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(listResponse{Count: 1, Results: []factRow{{
			ID:                 7,
			OriginAddress:      "Depot, Curitiba",
			OriginLat:          "-25.4284000",
			OriginLng:          "-49.2733000",
			DestinationAddress: "Stop A",
			DestinationLat:     "-25.4300000",
			DestinationLng:     "-49.2800000",
			DistanceMeters:     1200,
			DurationSeconds:    300,
			CreatedAt:          "2026-08-01T10:00:00Z",
			LastUsedAt:         "2026-08-20T09:30:00Z",
		}}})
	}))
	defer srv.Close()

	store := newBaserowStore(t, srv.URL)

	origin := domain.Coordinate{Lat: -25.4284, Lng: -49.2733}
	destination := domain.Coordinate{Lat: -25.4300, Lng: -49.2800}

	fact, err := store.Query(context.Background(), ports.FactQuery{
		Origin:      origin,
		Destination: destination,
		Tolerance:   domain.Tolerance,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fact.ID != 7 || fact.DistanceMeters != 1200 || fact.DurationSeconds != 300 {
		t.Fatalf("fact = %+v, want the served row", fact)
	}
	if fact.Origin != origin {
		t.Errorf("fact.Origin = %v, want %v", fact.Origin, origin)
	}
	if !fact.LastUsedAt.Equal(time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("fact.LastUsedAt = %v", fact.LastUsedAt)
	}

	if gotAuth != "Token test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/api/database/rows/table/42/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery.Get("user_field_names") != "true" || gotQuery.Get("order_by") != "-last_used_at" || gotQuery.Get("size") != "1" {
		t.Errorf("query = %v, want user_field_names/order_by/size set", gotQuery)
	}

	checkBound(t, gotQuery, "filter__origin_lat__higher_than_or_equal", origin.Lat-domain.Tolerance)
	checkBound(t, gotQuery, "filter__origin_lat__lower_than_or_equal", origin.Lat+domain.Tolerance)
	checkBound(t, gotQuery, "filter__origin_lng__higher_than_or_equal", origin.Lng-domain.Tolerance)
	checkBound(t, gotQuery, "filter__destination_lat__lower_than_or_equal", destination.Lat+domain.Tolerance)
	checkBound(t, gotQuery, "filter__destination_lng__higher_than_or_equal", destination.Lng-domain.Tolerance)
}

func checkBound(t *testing.T, q url.Values, key string, want float64) {
	t.Helper()

	raw := q.Get(key)
	if raw == "" {
		t.Fatalf("missing filter %s", key)
	}

	got, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		t.Fatalf("filter %s = %q: %v", key, raw, err)
	}
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("filter %s = %v, want %v", key, got, want)
	}
}

func TestBaserowQueryMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(listResponse{Count: 0})
	}))
	defer srv.Close()

	store := newBaserowStore(t, srv.URL)

	_, err := store.Query(context.Background(), ports.FactQuery{
		Origin:      domain.Coordinate{Lat: 1, Lng: 2},
		Destination: domain.Coordinate{Lat: 3, Lng: 4},
		Tolerance:   domain.Tolerance,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBaserowInsertAssignsRowID(t *testing.T) {
	var gotRow factRow
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRow); err != nil {
			t.Errorf("decode request: %v", err)
		}

		created := gotRow
		created.ID = 11
		json.NewEncoder(w).Encode(created)
	}))
	defer srv.Close()

	store := newBaserowStore(t, srv.URL)

	fact, err := store.Insert(context.Background(), domain.DistanceFact{
		Origin:          domain.Coordinate{Lat: -25.4284, Lng: -49.2733},
		Destination:     domain.Coordinate{Lat: -25.4300, Lng: -49.2800},
		DistanceMeters:  1200,
		DurationSeconds: 300,
		CreatedAt:       time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		LastUsedAt:      time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fact.ID != 11 {
		t.Fatalf("fact.ID = %d, want the created row id", fact.ID)
	}
	if gotRow.OriginLat != "-25.4284000" {
		t.Errorf("posted OriginLat = %q", gotRow.OriginLat)
	}
	if gotRow.CreatedAt != "2026-08-01T10:00:00Z" {
		t.Errorf("posted CreatedAt = %q", gotRow.CreatedAt)
	}
}

func TestBaserowTouchPatchesLastUsed(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotBody   map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	store := newBaserowStore(t, srv.URL)

	err := store.Touch(context.Background(), 11, time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotPath != "/api/database/rows/table/42/11/" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["last_used_at"] != "2026-08-29T12:00:00Z" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestBaserowDeleteOlderThanPagesThroughRows(t *testing.T) {
	rowIDs := []int64{1, 2, 3}
	listCalls, deleteCalls := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listCalls++
			if r.URL.Query().Get("filter__last_used_at__date_before") == "" {
				t.Errorf("list call missing the cutoff filter")
			}

			// Serve at most two rows per page to exercise the paging loop.
			page := make([]factRow, 0, 2)
			for _, id := range rowIDs {
				if len(page) == 2 {
					break
				}
				page = append(page, factRow{ID: id})
			}
			json.NewEncoder(w).Encode(listResponse{Count: len(rowIDs), Results: page})

		case http.MethodDelete:
			deleteCalls++
			rowIDs = removeRowID(t, rowIDs, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)

		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	store := newBaserowStore(t, srv.URL)

	deleted, err := store.DeleteOlderThan(context.Background(), time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deleted != 3 {
		t.Fatalf("deleted = %d, want 3", deleted)
	}
	if deleteCalls != 3 || len(rowIDs) != 0 {
		t.Errorf("deleteCalls = %d, remaining rows = %v", deleteCalls, rowIDs)
	}
	if listCalls != 3 {
		t.Errorf("listCalls = %d, want 3 (two pages plus the empty final page)", listCalls)
	}
}

func TestBaserowDeleteExcessTrimsToCap(t *testing.T) {
	rowIDs := []int64{1, 2, 3, 4, 5}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			size, _ := strconv.Atoi(r.URL.Query().Get("size"))
			if size <= 0 || size > len(rowIDs) {
				size = len(rowIDs)
			}

			page := make([]factRow, 0, size)
			for _, id := range rowIDs[:size] {
				page = append(page, factRow{ID: id})
			}
			json.NewEncoder(w).Encode(listResponse{Count: len(rowIDs), Results: page})

		case http.MethodDelete:
			rowIDs = removeRowID(t, rowIDs, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)

		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	store := newBaserowStore(t, srv.URL)

	deleted, err := store.DeleteExcess(context.Background(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deleted != 2 {
		t.Fatalf("deleted = %d, want 2", deleted)
	}
	if len(rowIDs) != 3 {
		t.Errorf("remaining rows = %v, want 3", rowIDs)
	}
}

func removeRowID(t *testing.T, ids []int64, path string) []int64 {
	t.Helper()

	parts := strings.Split(strings.Trim(path, "/"), "/")
	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		t.Fatalf("delete path %q: %v", path, err)
	}

	next := ids[:0]
	for _, rid := range ids {
		if rid != id {
			next = append(next, rid)
		}
	}
	return next
}
