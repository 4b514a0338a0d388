package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/platform/obs"
	"delivery-sequencer-service/internal/ports"
)

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Distance retrieves travel distance and duration for one coordinate pair
// from the distance-matrix endpoint. Coordinates cross the wire as
// "lat,lng" strings.
func (c *Client) Distance(ctx context.Context, origin, destination domain.Coordinate) (_ ports.DistanceResult, err error) {
	defer obs.Time(ctx, "maps.Distance")(&err)

	endpoint := "/maps/api/distancematrix/json"

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		q := url.Values{}
		q.Set("origins", origin.String())
		q.Set("destinations", destination.String())
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("matrix %s -> %s: %w", origin, destination, err)
	}
	defer resp.Body.Close()

	var decoded matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.DistanceResult{}, fmt.Errorf("decode matrix response: %w", err)
	}

	if decoded.Status != "OK" {
		return ports.DistanceResult{}, &domain.CollaboratorError{
			Status:  decoded.Status,
			Message: fmt.Sprintf("matrix %s -> %s", origin, destination),
		}
	}

	if len(decoded.Rows) != 1 || len(decoded.Rows[0].Elements) != 1 {
		return ports.DistanceResult{}, fmt.Errorf(
			"matrix %s -> %s: expected a single element, got %d rows",
			origin, destination, len(decoded.Rows),
		)
	}

	element := decoded.Rows[0].Elements[0]
	if element.Status != "OK" {
		return ports.DistanceResult{}, &domain.CollaboratorError{
			Status:  element.Status,
			Message: fmt.Sprintf("matrix element %s -> %s", origin, destination),
		}
	}

	return ports.DistanceResult{
		DistanceMeters:  element.Distance.Value,
		DurationSeconds: element.Duration.Value,
	}, nil
}
