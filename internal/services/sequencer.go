package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
)

const (
	// Bounds on concurrent oracle calls, tuned to stay under collaborator
	// rate limits rather than to saturate it.
	matrixConcurrency = 5
	legConcurrency    = 4
)

// Sequencer computes a visiting order for a depot and a set of stops.
//
// The heuristic: the stop farthest from the depot is pinned to the final
// visiting position, the rest are ordered by a greedy nearest-neighbor
// walk from the depot, and each leg of the resulting order is then
// materialized with full directions. Ending near the most distant delivery
// tends to keep the return leg short for that outlier; this is a heuristic,
// not an optimal-tour guarantee.
type Sequencer struct {
	oracle ports.DistanceOracle
	now    func() time.Time
}

func NewSequencer(oracle ports.DistanceOracle) *Sequencer {
	return &Sequencer{oracle: oracle, now: time.Now}
}

// Sequence builds a RoutePlan for the depot and stops.
//
// Preconditions: stops is non-empty and every stop carries in-range
// coordinates — unresolved stops must be filtered out by the caller.
// Any oracle failure aborts the whole computation; a partial plan is
// never returned.
func (s *Sequencer) Sequence(ctx context.Context, depot domain.Coordinate, stops []domain.StopPoint) (*domain.RoutePlan, error) {
	if !depot.Valid() {
		return nil, fmt.Errorf("%w: depot coordinates out of range: %s", domain.ErrInvalidStop, depot)
	}

	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: stop list is empty", domain.ErrInvalidStop)
	}

	// Stop ids key the distance matrix, so they must be unique and must
	// not shadow the depot.
	seen := make(map[string]struct{}, len(stops))
	for _, stop := range stops {
		if stop.ID == "" {
			return nil, fmt.Errorf("%w: stop %q has no id", domain.ErrInvalidStop, stop.RawAddress)
		}
		if stop.ID == domain.DepotID {
			return nil, fmt.Errorf("%w: stop id %q is reserved", domain.ErrInvalidStop, stop.ID)
		}
		if _, dup := seen[stop.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate stop id %q", domain.ErrInvalidStop, stop.ID)
		}
		seen[stop.ID] = struct{}{}
		if !stop.Coordinates.Valid() {
			return nil, fmt.Errorf("%w: stop %q coordinates out of range: %s",
				domain.ErrInvalidStop, stop.ID, stop.Coordinates)
		}
	}

	matrix := make(map[string]ports.DistanceResult)

	// Depot distance to every stop decides the farthest-last seed.
	depotJobs := make([]pairJob, 0, len(stops))
	for _, stop := range stops {
		depotJobs = append(depotJobs, pairJob{
			fromID: domain.DepotID, from: depot,
			toID: stop.ID, to: stop.Coordinates,
		})
	}
	if err := s.fillMatrix(ctx, depotJobs, matrix); err != nil {
		return nil, fmt.Errorf("sequence: depot distances: %w", err)
	}

	// Strictly-greater comparison keeps the first stop in request order
	// when several are exactly equidistant.
	farthest := 0
	for i := range stops {
		if matrix[pairID(domain.DepotID, stops[i].ID)].DistanceMeters >
			matrix[pairID(domain.DepotID, stops[farthest].ID)].DistanceMeters {
			farthest = i
		}
	}

	remaining := make([]domain.StopPoint, 0, len(stops)-1)
	for i, stop := range stops {
		if i != farthest {
			remaining = append(remaining, stop)
		}
	}

	// Pairwise distances among the remaining stops, fetched once per
	// unordered pair and used symmetrically for ordering purposes.
	pairJobs := make([]pairJob, 0, len(remaining)*(len(remaining)-1)/2)
	for i := 0; i < len(remaining); i++ {
		for j := i + 1; j < len(remaining); j++ {
			pairJobs = append(pairJobs, pairJob{
				fromID: remaining[i].ID, from: remaining[i].Coordinates,
				toID: remaining[j].ID, to: remaining[j].Coordinates,
				symmetric: true,
			})
		}
	}
	if err := s.fillMatrix(ctx, pairJobs, matrix); err != nil {
		return nil, fmt.Errorf("sequence: stop matrix: %w", err)
	}

	ordered, err := nearestNeighborWalk(remaining, matrix)
	if err != nil {
		return nil, fmt.Errorf("sequence: %w", err)
	}
	ordered = append(ordered, stops[farthest])

	legs, err := s.materializeLegs(ctx, depot, ordered)
	if err != nil {
		return nil, fmt.Errorf("sequence: %w", err)
	}

	plan := &domain.RoutePlan{
		Depot: depot,
		Order: make([]string, 0, len(ordered)),
		Legs:  legs,
	}
	for _, stop := range ordered {
		plan.Order = append(plan.Order, stop.ID)
	}
	for _, leg := range legs {
		plan.TotalDistanceMeters += leg.DistanceMeters
		plan.TotalDurationSeconds += leg.DurationSeconds
	}
	plan.EstimatedReturnTime = s.now().Add(time.Duration(plan.TotalDurationSeconds) * time.Second)

	return plan, nil
}

// nearestNeighborWalk greedily orders stops by distance from the current
// position, starting at the depot. Ties keep the earliest stop in
// insertion order, so identical inputs produce identical walks.
func nearestNeighborWalk(stops []domain.StopPoint, matrix map[string]ports.DistanceResult) ([]domain.StopPoint, error) {
	ordered := make([]domain.StopPoint, 0, len(stops)+1)
	remaining := append([]domain.StopPoint(nil), stops...)
	currentID := domain.DepotID

	for len(remaining) > 0 {
		best := -1
		bestMeters := math.MaxInt

		for i, stop := range remaining {
			r, ok := matrix[pairID(currentID, stop.ID)]
			if !ok {
				return nil, fmt.Errorf("nearest neighbor: missing distance %s -> %s", currentID, stop.ID)
			}
			if r.DistanceMeters < bestMeters {
				bestMeters = r.DistanceMeters
				best = i
			}
		}

		next := remaining[best]
		ordered = append(ordered, next)
		remaining = append(remaining[:best], remaining[best+1:]...)
		currentID = next.ID
	}

	return ordered, nil
}

// materializeLegs fetches full directions for every consecutive pair in
// the visiting order, including depot->first and last->depot. Leg fetches
// run concurrently; output positions always match the visiting order.
func (s *Sequencer) materializeLegs(ctx context.Context, depot domain.Coordinate, ordered []domain.StopPoint) ([]domain.RouteLeg, error) {
	type point struct {
		id    string
		coord domain.Coordinate
	}

	points := make([]point, 0, len(ordered)+2)
	points = append(points, point{id: domain.DepotID, coord: depot})
	for _, stop := range ordered {
		points = append(points, point{id: stop.ID, coord: stop.Coordinates})
	}
	points = append(points, point{id: domain.DepotID, coord: depot})

	legs := make([]domain.RouteLeg, len(points)-1)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(legConcurrency)

	for i := 0; i < len(points)-1; i++ {
		i := i
		from, to := points[i], points[i+1]
		g.Go(func() error {
			dir, err := s.oracle.GetDirections(ctx, from.coord, to.coord)
			if err != nil {
				return fmt.Errorf("materialize leg %s -> %s: %w", from.id, to.id, err)
			}

			legs[i] = domain.RouteLeg{
				FromStopID:      from.id,
				ToStopID:        to.id,
				DistanceMeters:  dir.DistanceMeters,
				DurationSeconds: dir.DurationSeconds,
				Polyline:        dir.Polyline,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return legs, nil
}

type pairJob struct {
	fromID string
	from   domain.Coordinate
	toID   string
	to     domain.Coordinate
	// symmetric mirrors the result into the reverse direction; ordering
	// treats road distances as symmetric, materialized legs do not.
	symmetric bool
}

type pairResult struct {
	job    pairJob
	result ports.DistanceResult
	err    error
}

// fillMatrix fetches every job's pairwise distance with bounded
// concurrency, cancelling outstanding work on the first failure.
func (s *Sequencer) fillMatrix(ctx context.Context, jobs []pairJob, matrix map[string]ports.DistanceResult) error {
	if len(jobs) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, matrixConcurrency)
	resultsCh := make(chan pairResult, len(jobs))
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(j pairJob) {
			sem <- struct{}{}
			defer wg.Done()
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				resultsCh <- pairResult{job: j, err: err}
				return
			}

			r, err := s.oracle.GetDistance(ctx, j.from, j.to)
			if err != nil {
				resultsCh <- pairResult{job: j, err: fmt.Errorf("get distance %s -> %s: %w", j.fromID, j.toID, err)}
				cancel()
				return
			}

			resultsCh <- pairResult{job: j, result: r}
		}(job)
	}

	wg.Wait()
	close(resultsCh)

	var firstErr error
	for res := range resultsCh {
		if res.err != nil {
			// Prefer the causing error over cancellations it triggered.
			if firstErr == nil || errors.Is(firstErr, context.Canceled) {
				firstErr = res.err
			}
			continue
		}

		matrix[pairID(res.job.fromID, res.job.toID)] = res.result
		if res.job.symmetric {
			matrix[pairID(res.job.toID, res.job.fromID)] = res.result
		}
	}

	return firstErr
}

func pairID(from, to string) string { return from + "|" + to }
