package domain

// DepotID is the synthetic stop id used for the depot endpoints of a route.
const DepotID = "depot"

// A single delivery destination within one route computation.
// StopPoints are owned by the sequencer for the duration of a request and
// are never persisted.
type StopPoint struct {
	ID          string
	Coordinates Coordinate
	RawAddress  string
}
