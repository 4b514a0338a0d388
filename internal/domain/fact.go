package domain

import "time"

// A cached pairwise distance/duration measurement between two coordinates.
// Facts are immutable once written; only LastUsedAt is ever updated, and
// racing updates of it are harmless. Duplicate facts for overlapping
// coordinate pairs are tolerated — reads pick the most recently used match.
type DistanceFact struct {
	ID                 int64
	OriginAddress      string
	Origin             Coordinate
	DestinationAddress string
	Destination        Coordinate
	DistanceMeters     int
	DurationSeconds    int
	Polyline           []Coordinate
	CreatedAt          time.Time
	LastUsedAt         time.Time
}
