package dto

import "time"

// A depot or stop in a plan request: either resolved coordinates or a
// free-text address to geocode.
type PointRequest struct {
	ID      string   `json:"id,omitempty"`
	Address string   `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

type PlanRouteRequest struct {
	Depot PointRequest   `json:"depot"`
	Stops []PointRequest `json:"stops"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type StopResponse struct {
	ID          string `json:"id"`
	Address     string `json:"address,omitempty"`
	Coordinates LatLng `json:"coordinates"`
}

type LegResponse struct {
	From            string   `json:"from"`
	To              string   `json:"to"`
	DistanceMeters  int      `json:"distance_meters"`
	DurationSeconds int      `json:"duration_seconds"`
	Polyline        []LatLng `json:"polyline"`
}

type PlanRouteResponse struct {
	Depot                LatLng         `json:"depot"`
	Order                []string       `json:"order"`
	Stops                []StopResponse `json:"stops"`
	Legs                 []LegResponse  `json:"legs"`
	TotalDistanceMeters  int            `json:"total_distance_meters"`
	TotalDurationSeconds int            `json:"total_duration_seconds"`
	EstimatedReturnTime  time.Time      `json:"estimated_return_time"`
}
