package facts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
)

// SQLite backed implementation of the FactStore port.
// Coordinates are persisted pre-rounded by the caller so the BETWEEN
// filters compare identical values on the write and read paths.
// Timestamps are stored as unix seconds.
type SqliteFactStore struct {
	DB *sql.DB
}

func NewSqliteFactStore(db *sql.DB) *SqliteFactStore {
	return &SqliteFactStore{DB: db}
}

const factColumns = `
	id,
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
	last_used_at`

// Query returns the most-recently-used fact inside the tolerance box.
func (s *SqliteFactStore) Query(ctx context.Context, q ports.FactQuery) (domain.DistanceFact, error) {
	if s.DB == nil {
		return domain.DistanceFact{}, errors.New("sqlite fact store: DB is nil")
	}

	query := fmt.Sprintf(`
	SELECT %s
	FROM distance_facts
	WHERE origin_lat BETWEEN ? AND ?
		AND origin_lng BETWEEN ? AND ?
		AND destination_lat BETWEEN ? AND ?
		AND destination_lng BETWEEN ? AND ?
	ORDER BY last_used_at DESC, id DESC
	LIMIT 1;
	`, factColumns)

	row := s.DB.QueryRowContext(ctx, query,
		q.Origin.Lat-q.Tolerance, q.Origin.Lat+q.Tolerance,
		q.Origin.Lng-q.Tolerance, q.Origin.Lng+q.Tolerance,
		q.Destination.Lat-q.Tolerance, q.Destination.Lat+q.Tolerance,
		q.Destination.Lng-q.Tolerance, q.Destination.Lng+q.Tolerance,
	)

	fact, err := scanSqliteFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DistanceFact{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("query fact: %w", err)
	}

	return fact, nil
}

// Insert persists a new fact. Duplicate coordinate pairs are tolerated;
// no uniqueness constraint exists.
func (s *SqliteFactStore) Insert(ctx context.Context, fact domain.DistanceFact) (domain.DistanceFact, error) {
	if s.DB == nil {
		return domain.DistanceFact{}, errors.New("sqlite fact store: DB is nil")
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
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	res, err := s.DB.ExecContext(ctx, query,
		fact.OriginAddress,
		fact.Origin.Lat,
		fact.Origin.Lng,
		fact.DestinationAddress,
		fact.Destination.Lat,
		fact.Destination.Lng,
		fact.DistanceMeters,
		fact.DurationSeconds,
		polyline,
		fact.CreatedAt.Unix(),
		fact.LastUsedAt.Unix(),
	)
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("insert fact: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.DistanceFact{}, fmt.Errorf("insert fact: last insert id: %w", err)
	}

	fact.ID = id
	return fact, nil
}

// Touch bumps last_used_at for one fact.
func (s *SqliteFactStore) Touch(ctx context.Context, id int64, usedAt time.Time) error {
	if s.DB == nil {
		return errors.New("sqlite fact store: DB is nil")
	}

	query := `UPDATE distance_facts SET last_used_at = ? WHERE id = ?;`
	if _, err := s.DB.ExecContext(ctx, query, usedAt.Unix(), id); err != nil {
		return fmt.Errorf("touch fact id=%d: %w", id, err)
	}

	return nil
}

// DeleteOlderThan removes facts last used before cutoff.
func (s *SqliteFactStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if s.DB == nil {
		return 0, errors.New("sqlite fact store: DB is nil")
	}

	query := `DELETE FROM distance_facts WHERE last_used_at < ?;`
	res, err := s.DB.ExecContext(ctx, query, cutoff.Unix())
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
func (s *SqliteFactStore) DeleteExcess(ctx context.Context, maxRecords int) (int, error) {
	if s.DB == nil {
		return 0, errors.New("sqlite fact store: DB is nil")
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
		LIMIT ?
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
func (s *SqliteFactStore) Count(ctx context.Context) (int, error) {
	if s.DB == nil {
		return 0, errors.New("sqlite fact store: DB is nil")
	}

	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM distance_facts;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count facts: %w", err)
	}

	return n, nil
}

func scanSqliteFact(row *sql.Row) (domain.DistanceFact, error) {
	var (
		fact              domain.DistanceFact
		polyline          sql.NullString
		createdAt, usedAt int64
	)

	err := row.Scan(
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
		&createdAt,
		&usedAt,
	)
	if err != nil {
		return domain.DistanceFact{}, err
	}

	fact.CreatedAt = time.Unix(createdAt, 0).UTC()
	fact.LastUsedAt = time.Unix(usedAt, 0).UTC()

	if polyline.Valid && polyline.String != "" {
		if err := json.Unmarshal([]byte(polyline.String), &fact.Polyline); err != nil {
			return domain.DistanceFact{}, fmt.Errorf("decode polyline: %w", err)
		}
	}

	return fact, nil
}

func marshalPolyline(points []domain.Coordinate) (sql.NullString, error) {
	if len(points) == 0 {
		return sql.NullString{}, nil
	}

	b, err := json.Marshal(points)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode polyline: %w", err)
	}

	return sql.NullString{String: string(b), Valid: true}, nil
}
