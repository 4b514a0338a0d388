package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/twpayne/go-polyline"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/platform/obs"
	"delivery-sequencer-service/internal/ports"
)

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
			StartAddress string `json:"start_address"`
			EndAddress   string `json:"end_address"`
		} `json:"legs"`
	} `json:"routes"`
}

// Directions retrieves full road directions for one leg, including the
// decoded overview polyline.
func (c *Client) Directions(ctx context.Context, origin, destination domain.Coordinate) (_ ports.DirectionsResult, err error) {
	defer obs.Time(ctx, "maps.Directions")(&err)

	endpoint := "/maps/api/directions/json"

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		q := url.Values{}
		q.Set("origin", origin.String())
		q.Set("destination", destination.String())
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("directions %s -> %s: %w", origin, destination, err)
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("decode directions response: %w", err)
	}

	if decoded.Status != "OK" {
		return ports.DirectionsResult{}, &domain.CollaboratorError{
			Status:  decoded.Status,
			Message: fmt.Sprintf("directions %s -> %s", origin, destination),
		}
	}

	if len(decoded.Routes) == 0 || len(decoded.Routes[0].Legs) == 0 {
		return ports.DirectionsResult{}, &domain.CollaboratorError{
			Status:  "ZERO_RESULTS",
			Message: fmt.Sprintf("directions %s -> %s: empty route", origin, destination),
		}
	}

	route := decoded.Routes[0]

	points, err := decodePolyline(route.OverviewPolyline.Points)
	if err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("directions %s -> %s: %w", origin, destination, err)
	}

	result := ports.DirectionsResult{
		Polyline:     points,
		StartAddress: route.Legs[0].StartAddress,
		EndAddress:   route.Legs[len(route.Legs)-1].EndAddress,
	}
	for _, leg := range route.Legs {
		result.DistanceMeters += leg.Distance.Value
		result.DurationSeconds += leg.Duration.Value
	}

	return result, nil
}

func decodePolyline(encoded string) ([]domain.Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}

	points := make([]domain.Coordinate, 0, len(coords))
	for _, c := range coords {
		points = append(points, domain.Coordinate{Lat: c[0], Lng: c[1]})
	}

	return points, nil
}
