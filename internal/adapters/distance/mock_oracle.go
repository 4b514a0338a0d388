package distance

import (
	"context"
	"fmt"
	"sync"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
)

type MockPair struct {
	From, To domain.Coordinate
	Meters   int
	Seconds  int
}

// MockOracle serves fixed pairwise results from memory and counts calls.
// Intended for tests of the sequencer and API layers; safe for the
// sequencer's concurrent lookups.
type MockOracle struct {
	mu sync.Mutex
	m  map[string]ports.DistanceResult

	distanceCalls  int
	directionCalls int

	// FailAfter makes every call starting with the Nth fail (0 disables).
	FailAfter int
}

func NewMockOracle(pairs []MockPair) *MockOracle {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[domain.PairKey(p.From, p.To)] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockOracle{m: m}
}

func (o *MockOracle) DistanceCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.distanceCalls
}

func (o *MockOracle) DirectionCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.directionCalls
}

func (o *MockOracle) GetDistance(_ context.Context, origin, destination domain.Coordinate) (ports.DistanceResult, error) {
	o.mu.Lock()
	o.distanceCalls++
	fail := o.FailAfter > 0 && o.distanceCalls+o.directionCalls >= o.FailAfter
	r, ok := o.m[domain.PairKey(origin, destination)]
	o.mu.Unlock()

	if fail {
		return ports.DistanceResult{}, fmt.Errorf("%w: mock oracle failure", domain.ErrDistanceUnavailable)
	}
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %s -> %s", origin, destination)
	}

	return r, nil
}

func (o *MockOracle) GetDirections(_ context.Context, origin, destination domain.Coordinate) (ports.DirectionsResult, error) {
	o.mu.Lock()
	o.directionCalls++
	fail := o.FailAfter > 0 && o.distanceCalls+o.directionCalls >= o.FailAfter
	r, ok := o.m[domain.PairKey(origin, destination)]
	o.mu.Unlock()

	if fail {
		return ports.DirectionsResult{}, fmt.Errorf("%w: mock oracle failure", domain.ErrDistanceUnavailable)
	}
	if !ok {
		return ports.DirectionsResult{}, fmt.Errorf("missing pair %s -> %s", origin, destination)
	}

	return ports.DirectionsResult{
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: r.DurationSeconds,
		Polyline:        []domain.Coordinate{origin, destination},
	}, nil
}
