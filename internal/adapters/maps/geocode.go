package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/platform/obs"
	"delivery-sequencer-service/internal/ports"
)

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (_ ports.GeocodeResult, err error) {
	defer obs.Time(ctx, "maps.Geocode")(&err)

	if address == "" {
		return ports.GeocodeResult{}, errors.New("geocode: address must be non-empty")
	}

	endpoint := "/maps/api/geocode/json"

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		q := url.Values{}
		q.Set("address", address)
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return ports.GeocodeResult{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.GeocodeResult{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if decoded.Status != "OK" {
		return ports.GeocodeResult{}, &domain.CollaboratorError{
			Status:  decoded.Status,
			Message: fmt.Sprintf("geocode %q", address),
		}
	}

	if len(decoded.Results) == 0 {
		return ports.GeocodeResult{}, &domain.CollaboratorError{
			Status:  "ZERO_RESULTS",
			Message: fmt.Sprintf("geocode %q", address),
		}
	}

	first := decoded.Results[0]
	coord := domain.Coordinate{
		Lat: first.Geometry.Location.Lat,
		Lng: first.Geometry.Location.Lng,
	}
	if !coord.Valid() {
		return ports.GeocodeResult{}, fmt.Errorf("geocode %q: coordinates out of range: %s", address, coord)
	}

	return ports.GeocodeResult{
		Coordinates:      coord,
		FormattedAddress: first.FormattedAddress,
	}, nil
}
