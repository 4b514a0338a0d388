package domain

import (
	"fmt"
	"math"
)

// Tolerance is the per-axis proximity margin (about 10 meters) under which
// two coordinates are treated as the same place for caching purposes.
const Tolerance = 0.0001

// storePrecision is the number of decimal digits kept when persisting
// coordinates, so range filters compare identical values on the write and
// read paths.
const storePrecision = 7

// gridPrecision matches Tolerance (10^-4 degrees) and defines the
// exact-rounded key used by the in-process cache tier.
const gridPrecision = 4

// Immutable geographic coordinates (latitude, longitude).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both axes are inside the WGS84 value range.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Near reports whether o is within Tolerance of c on both axes.
func (c Coordinate) Near(o Coordinate) bool {
	return math.Abs(c.Lat-o.Lat) <= Tolerance && math.Abs(c.Lng-o.Lng) <= Tolerance
}

// Rounded truncates the coordinate to the fixed persistence precision.
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{Lat: roundTo(c.Lat, storePrecision), Lng: roundTo(c.Lng, storePrecision)}
}

// String returns the "lat,lng" wire form used toward external collaborators.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.7f,%.7f", c.Lat, c.Lng)
}

// gridKey snaps the coordinate to the tolerance grid.
func (c Coordinate) gridKey() string {
	return fmt.Sprintf("%.*f,%.*f", gridPrecision, c.Lat, gridPrecision, c.Lng)
}

// PairKey is the exact-rounded cache key for an (origin, destination) pair.
func PairKey(origin, destination Coordinate) string {
	return origin.gridKey() + "|" + destination.gridKey()
}

func roundTo(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}
