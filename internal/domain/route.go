package domain

import "time"

// Travel segment between two consecutive points in a route, carrying the
// materialized (directions-level) distance, duration and polyline.
type RouteLeg struct {
	FromStopID      string
	ToStopID        string
	DistanceMeters  int
	DurationSeconds int
	Polyline        []Coordinate
}

// Planned visiting order for one depot and stop set.
// A RoutePlan is rebuilt from scratch on every request and never persisted.
// Totals are the sums over materialized legs, including the return leg.
type RoutePlan struct {
	Depot                Coordinate
	Order                []string
	Legs                 []RouteLeg
	TotalDistanceMeters  int
	TotalDurationSeconds int
	EstimatedReturnTime  time.Time
}
