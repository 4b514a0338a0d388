package facts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/platform/retry"
	"delivery-sequencer-service/internal/ports"
)

// BaserowFactStore implements the FactStore port against a Baserow table,
// for deployments that keep distance facts in a hosted spreadsheet-database
// instead of SQL.
//
// The external row shape — string-encoded decimals, RFC3339 date strings —
// is confined to factRow and its mapping helpers; nothing outside this
// file knows the table schema.
type BaserowFactStore struct {
	session *http.Client
	baseURL string
	token   string
	tableID int
	retry   retry.Policy
}

func NewBaserowFactStore(baseURL, token string, tableID int) (*BaserowFactStore, error) {
	if baseURL == "" || token == "" {
		return nil, errors.New("baserow fact store: base URL and token are required")
	}

	if tableID <= 0 {
		return nil, fmt.Errorf("baserow fact store: invalid table id %d", tableID)
	}

	return &BaserowFactStore{
		session: &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		token:   token,
		tableID: tableID,
		retry: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Retryable:   isTransient,
		},
	}, nil
}

// factRow is the Baserow row shape. Baserow serializes number fields as
// strings and dates as RFC3339 strings.
type factRow struct {
	ID                 int64  `json:"id,omitempty"`
	OriginAddress      string `json:"origin_address"`
	OriginLat          string `json:"origin_lat"`
	OriginLng          string `json:"origin_lng"`
	DestinationAddress string `json:"destination_address"`
	DestinationLat     string `json:"destination_lat"`
	DestinationLng     string `json:"destination_lng"`
	DistanceMeters     int    `json:"distance_meters"`
	DurationSeconds    int    `json:"duration_seconds"`
	Polyline           string `json:"polyline,omitempty"`
	CreatedAt          string `json:"created_at"`
	LastUsedAt         string `json:"last_used_at"`
}

type listResponse struct {
	Count   int       `json:"count"`
	Results []factRow `json:"results"`
}

// Query returns the most-recently-used row inside the tolerance box.
func (s *BaserowFactStore) Query(ctx context.Context, q ports.FactQuery) (domain.DistanceFact, error) {
	params := url.Values{}
	params.Set("user_field_names", "true")
	params.Set("order_by", "-last_used_at")
	params.Set("size", "1")
	params.Set("filter__origin_lat__higher_than_or_equal", formatCoord(q.Origin.Lat-q.Tolerance))
	params.Set("filter__origin_lat__lower_than_or_equal", formatCoord(q.Origin.Lat+q.Tolerance))
	params.Set("filter__origin_lng__higher_than_or_equal", formatCoord(q.Origin.Lng-q.Tolerance))
	params.Set("filter__origin_lng__lower_than_or_equal", formatCoord(q.Origin.Lng+q.Tolerance))
	params.Set("filter__destination_lat__higher_than_or_equal", formatCoord(q.Destination.Lat-q.Tolerance))
	params.Set("filter__destination_lat__lower_than_or_equal", formatCoord(q.Destination.Lat+q.Tolerance))
	params.Set("filter__destination_lng__higher_than_or_equal", formatCoord(q.Destination.Lng-q.Tolerance))
	params.Set("filter__destination_lng__lower_than_or_equal", formatCoord(q.Destination.Lng+q.Tolerance))

	var list listResponse
	if err := s.call(ctx, http.MethodGet, s.rowsURL("")+"?"+params.Encode(), nil, &list); err != nil {
		return domain.DistanceFact{}, fmt.Errorf("baserow query fact: %w", err)
	}

	if len(list.Results) == 0 {
		return domain.DistanceFact{}, domain.ErrNotFound
	}

	fact, err := rowToFact(list.Results[0])
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("baserow query fact: %w", err)
	}

	return fact, nil
}

// Insert creates a new row and returns the fact with its row id.
func (s *BaserowFactStore) Insert(ctx context.Context, fact domain.DistanceFact) (domain.DistanceFact, error) {
	row, err := factToRow(fact)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("baserow insert fact: %w", err)
	}

	var created factRow
	if err := s.call(ctx, http.MethodPost, s.rowsURL("")+"?user_field_names=true", row, &created); err != nil {
		return domain.DistanceFact{}, fmt.Errorf("baserow insert fact: %w", err)
	}

	fact.ID = created.ID
	return fact, nil
}

// Touch patches last_used_at for one row.
func (s *BaserowFactStore) Touch(ctx context.Context, id int64, usedAt time.Time) error {
	patch := map[string]string{"last_used_at": usedAt.UTC().Format(time.RFC3339)}

	target := s.rowsURL(strconv.FormatInt(id, 10)) + "?user_field_names=true"
	if err := s.call(ctx, http.MethodPatch, target, patch, nil); err != nil {
		return fmt.Errorf("baserow touch fact id=%d: %w", id, err)
	}

	return nil
}

// DeleteOlderThan pages through rows last used before cutoff, deleting
// each. Baserow has no bulk delete-by-filter, so this walks pages of 100.
func (s *BaserowFactStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0

	for {
		params := url.Values{}
		params.Set("user_field_names", "true")
		params.Set("order_by", "last_used_at")
		params.Set("size", "100")
		params.Set("filter__last_used_at__date_before", cutoff.UTC().Format("2006-01-02T15:04:05Z"))

		var list listResponse
		if err := s.call(ctx, http.MethodGet, s.rowsURL("")+"?"+params.Encode(), nil, &list); err != nil {
			return deleted, fmt.Errorf("baserow delete old facts: list: %w", err)
		}

		if len(list.Results) == 0 {
			return deleted, nil
		}

		for _, row := range list.Results {
			if err := s.deleteRow(ctx, row.ID); err != nil {
				return deleted, fmt.Errorf("baserow delete old facts: %w", err)
			}
			deleted++
		}
	}
}

// DeleteExcess trims oldest-by-last-used rows down to maxRecords.
func (s *BaserowFactStore) DeleteExcess(ctx context.Context, maxRecords int) (int, error) {
	total, err := s.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("baserow delete excess facts: %w", err)
	}

	deleted := 0
	for total-deleted > maxRecords {
		remaining := total - deleted - maxRecords
		size := remaining
		if size > 100 {
			size = 100
		}

		params := url.Values{}
		params.Set("user_field_names", "true")
		params.Set("order_by", "last_used_at")
		params.Set("size", strconv.Itoa(size))

		var list listResponse
		if err := s.call(ctx, http.MethodGet, s.rowsURL("")+"?"+params.Encode(), nil, &list); err != nil {
			return deleted, fmt.Errorf("baserow delete excess facts: list: %w", err)
		}

		if len(list.Results) == 0 {
			return deleted, nil
		}

		for _, row := range list.Results {
			if err := s.deleteRow(ctx, row.ID); err != nil {
				return deleted, fmt.Errorf("baserow delete excess facts: %w", err)
			}
			deleted++
		}
	}

	return deleted, nil
}

// Count returns the table row count.
func (s *BaserowFactStore) Count(ctx context.Context) (int, error) {
	var list listResponse
	if err := s.call(ctx, http.MethodGet, s.rowsURL("")+"?user_field_names=true&size=1", nil, &list); err != nil {
		return 0, fmt.Errorf("baserow count facts: %w", err)
	}

	return list.Count, nil
}

func (s *BaserowFactStore) deleteRow(ctx context.Context, id int64) error {
	target := s.rowsURL(strconv.FormatInt(id, 10))
	if err := s.call(ctx, http.MethodDelete, target, nil, nil); err != nil {
		return fmt.Errorf("delete row id=%d: %w", id, err)
	}

	return nil
}

func (s *BaserowFactStore) rowsURL(rowID string) string {
	u := fmt.Sprintf("%s/api/database/rows/table/%d/", s.baseURL, s.tableID)
	if rowID != "" {
		u += rowID + "/"
	}
	return u
}

// call issues one authenticated request with transient-failure retries and
// decodes the JSON response into out (when non-nil).
func (s *BaserowFactStore) call(ctx context.Context, method, target string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	var resp *http.Response
	err := s.retry.Do(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Token "+s.token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		r, err := s.session.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= 400 {
			b, _ := io.ReadAll(r.Body)
			r.Body.Close()
			return &httpStatusError{Code: r.StatusCode, Body: string(b)}
		}

		resp = r
		return nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func isTransient(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case 429, 500, 502, 503, 504:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func rowToFact(row factRow) (domain.DistanceFact, error) {
	origin, err := parseCoord(row.OriginLat, row.OriginLng)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("row id=%d origin: %w", row.ID, err)
	}

	destination, err := parseCoord(row.DestinationLat, row.DestinationLng)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("row id=%d destination: %w", row.ID, err)
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("row id=%d created_at: %w", row.ID, err)
	}

	lastUsedAt, err := time.Parse(time.RFC3339, row.LastUsedAt)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("row id=%d last_used_at: %w", row.ID, err)
	}

	fact := domain.DistanceFact{
		ID:                 row.ID,
		OriginAddress:      row.OriginAddress,
		Origin:             origin,
		DestinationAddress: row.DestinationAddress,
		Destination:        destination,
		DistanceMeters:     row.DistanceMeters,
		DurationSeconds:    row.DurationSeconds,
		CreatedAt:          createdAt,
		LastUsedAt:         lastUsedAt,
	}

	if row.Polyline != "" {
		if err := json.Unmarshal([]byte(row.Polyline), &fact.Polyline); err != nil {
			return domain.DistanceFact{}, fmt.Errorf("row id=%d polyline: %w", row.ID, err)
		}
	}

	return fact, nil
}

func factToRow(fact domain.DistanceFact) (factRow, error) {
	row := factRow{
		OriginAddress:      fact.OriginAddress,
		OriginLat:          formatCoord(fact.Origin.Lat),
		OriginLng:          formatCoord(fact.Origin.Lng),
		DestinationAddress: fact.DestinationAddress,
		DestinationLat:     formatCoord(fact.Destination.Lat),
		DestinationLng:     formatCoord(fact.Destination.Lng),
		DistanceMeters:     fact.DistanceMeters,
		DurationSeconds:    fact.DurationSeconds,
		CreatedAt:          fact.CreatedAt.UTC().Format(time.RFC3339),
		LastUsedAt:         fact.LastUsedAt.UTC().Format(time.RFC3339),
	}

	if len(fact.Polyline) > 0 {
		b, err := json.Marshal(fact.Polyline)
		if err != nil {
			return factRow{}, fmt.Errorf("encode polyline: %w", err)
		}
		row.Polyline = string(b)
	}

	return row, nil
}

func parseCoord(lat, lng string) (domain.Coordinate, error) {
	latF, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("parse lat %q: %w", lat, err)
	}

	lngF, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("parse lng %q: %w", lng, err)
	}

	return domain.Coordinate{Lat: latF, Lng: lngF}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}
