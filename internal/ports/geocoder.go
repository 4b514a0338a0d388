package ports

import (
	"context"

	"delivery-sequencer-service/internal/domain"
)

// Resolved coordinates for a free-text address.
type GeocodeResult struct {
	Coordinates      domain.Coordinate
	FormattedAddress string
}

// Port: resolves free-text addresses to coordinates. Consumed by the API
// layer before stops reach the sequencer.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (GeocodeResult, error)
}
