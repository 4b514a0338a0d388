package facts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/platform/obs"
	"delivery-sequencer-service/internal/ports"
)

// Postgres backed implementation of the FactStore port (pgx stdlib driver).
type PGFactStore struct {
	DB *sql.DB
}

func NewPGFactStore(db *sql.DB) *PGFactStore {
	return &PGFactStore{DB: db}
}

// Query returns the most-recently-used fact inside the tolerance box.
func (s *PGFactStore) Query(ctx context.Context, q ports.FactQuery) (_ domain.DistanceFact, err error) {
	defer obs.Time(ctx, "facts.pg.Query")(&err)

	if s.DB == nil {
		return domain.DistanceFact{}, errors.New("pg fact store: DB is nil")
	}

	query := fmt.Sprintf(`
	SELECT %s
	FROM distance_facts
	WHERE origin_lat BETWEEN $1 AND $2
		AND origin_lng BETWEEN $3 AND $4
		AND destination_lat BETWEEN $5 AND $6
		AND destination_lng BETWEEN $7 AND $8
	ORDER BY last_used_at DESC, id DESC
	LIMIT 1;
	`, factColumns)

	row := s.DB.QueryRowContext(ctx, query,
		q.Origin.Lat-q.Tolerance, q.Origin.Lat+q.Tolerance,
		q.Origin.Lng-q.Tolerance, q.Origin.Lng+q.Tolerance,
		q.Destination.Lat-q.Tolerance, q.Destination.Lat+q.Tolerance,
		q.Destination.Lng-q.Tolerance, q.Destination.Lng+q.Tolerance,
	)

	var (
		fact     domain.DistanceFact
		polyline sql.NullString
	)

	scanErr := row.Scan(
		&fact.ID,
		&fact.OriginAddress,
		&fact.Origin.Lat,
		&fact.Origin.Lng,
		&fact.DestinationAddress,
		&fact.Destination.Lat,
		&fact.Destination.Lng,
		&fact.DistanceMeters,
		&fact.DurationSeconds,
		&polyline,
		&fact.CreatedAt,
		&fact.LastUsedAt,
	)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return domain.DistanceFact{}, domain.ErrNotFound
	}
	if scanErr != nil {
		return domain.DistanceFact{}, fmt.Errorf("query fact: %w", scanErr)
	}

	if polyline.Valid && polyline.String != "" {
		if err := json.Unmarshal([]byte(polyline.String), &fact.Polyline); err != nil {
			return domain.DistanceFact{}, fmt.Errorf("query fact: decode polyline: %w", err)
		}
	}

	return fact, nil
}

// Insert persists a new fact and reads back its generated id.
func (s *PGFactStore) Insert(ctx context.Context, fact domain.DistanceFact) (domain.DistanceFact, error) {
	if s.DB == nil {
		return domain.DistanceFact{}, errors.New("pg fact store: DB is nil")
	}

	polyline, err := marshalPolyline(fact.Polyline)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("insert fact: %w", err)
	}

	query := `
	INSERT INTO distance_facts (
		origin_address,
		origin_lat,
		origin_lng,
		destination_address,
		destination_lat,
		destination_lng,
		distance_meters,
		duration_seconds,
		polyline,
		created_at,
		last_used_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id;
	`

	err = s.DB.QueryRowContext(ctx, query,
		fact.OriginAddress,
		fact.Origin.Lat,
		fact.Origin.Lng,
		fact.DestinationAddress,
		fact.Destination.Lat,
		fact.Destination.Lng,
		fact.DistanceMeters,
		fact.DurationSeconds,
		polyline,
		fact.CreatedAt,
		fact.LastUsedAt,
	).Scan(&fact.ID)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("insert fact: %w", err)
	}

	return fact, nil
}

// Touch bumps last_used_at for one fact.
func (s *PGFactStore) Touch(ctx context.Context, id int64, usedAt time.Time) error {
	if s.DB == nil {
		return errors.New("pg fact store: DB is nil")
	}

	query := `UPDATE distance_facts SET last_used_at = $1 WHERE id = $2;`
	if _, err := s.DB.ExecContext(ctx, query, usedAt, id); err != nil {
		return fmt.Errorf("touch fact id=%d: %w", id, err)
	}

	return nil
}

// DeleteOlderThan removes facts last used before cutoff.
func (s *PGFactStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if s.DB == nil {
		return 0, errors.New("pg fact store: DB is nil")
	}

	query := `DELETE FROM distance_facts WHERE last_used_at < $1;`
	res, err := s.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete facts older than %v: %w", cutoff, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete facts older than %v: rows affected: %w", cutoff, err)
	}

	return int(n), nil
}

// DeleteExcess trims oldest-by-last-used facts down to maxRecords.
func (s *PGFactStore) DeleteExcess(ctx context.Context, maxRecords int) (int, error) {
	if s.DB == nil {
		return 0, errors.New("pg fact store: DB is nil")
	}

	total, err := s.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete excess facts: %w", err)
	}

	if total <= maxRecords {
		return 0, nil
	}

	query := `
	DELETE FROM distance_facts
	WHERE id IN (
		SELECT id FROM distance_facts
		ORDER BY last_used_at ASC, id ASC
		LIMIT $1
	);
	`

	res, err := s.DB.ExecContext(ctx, query, total-maxRecords)
	if err != nil {
		return 0, fmt.Errorf("delete excess facts: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete excess facts: rows affected: %w", err)
	}

	return int(n), nil
}

// Count returns the number of stored facts.
func (s *PGFactStore) Count(ctx context.Context) (int, error) {
	if s.DB == nil {
		return 0, errors.New("pg fact store: DB is nil")
	}

	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM distance_facts;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count facts: %w", err)
	}

	return n, nil
}
