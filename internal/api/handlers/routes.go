package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"delivery-sequencer-service/internal/api/dto"
	"delivery-sequencer-service/internal/domain"
	"delivery-sequencer-service/internal/ports"
	"delivery-sequencer-service/internal/services"
)

// RouteHandler resolves request points to coordinates and runs the
// sequencer. Unresolvable stops never reach the sequencer.
type RouteHandler struct {
	Sequencer *services.Sequencer
	Geocoder  ports.Geocoder
}

func (h *RouteHandler) Plan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.PlanRouteRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if len(req.Stops) == 0 {
		writeError(w, r, http.StatusBadRequest, "stops must not be empty")
		return
	}

	depot, _, err := h.resolvePoint(r, req.Depot)
	if err != nil {
		h.writeResolveError(w, r, "depot", err)
		return
	}

	stops := make([]domain.StopPoint, 0, len(req.Stops))
	for i, p := range req.Stops {
		coord, formatted, err := h.resolvePoint(r, p)
		if err != nil {
			h.writeResolveError(w, r, fmt.Sprintf("stop #%d", i+1), err)
			return
		}

		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = uuid.NewString()
		}

		address := p.Address
		if formatted != "" {
			address = formatted
		}

		stops = append(stops, domain.StopPoint{
			ID:          id,
			Coordinates: coord,
			RawAddress:  address,
		})
	}

	plan, err := h.Sequencer.Sequence(r.Context(), depot, stops)
	if err != nil {
		h.writePlanError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, planToResponse(plan, stops))
}

// resolvePoint prefers explicit coordinates; otherwise geocodes the
// address. Returns the formatted address when geocoding was involved.
func (h *RouteHandler) resolvePoint(r *http.Request, p dto.PointRequest) (domain.Coordinate, string, error) {
	if p.Lat != nil && p.Lng != nil {
		coord := domain.Coordinate{Lat: *p.Lat, Lng: *p.Lng}
		if !coord.Valid() {
			return domain.Coordinate{}, "", fmt.Errorf("%w: coordinates out of range: %s", domain.ErrInvalidStop, coord)
		}
		return coord, "", nil
	}

	address := strings.TrimSpace(p.Address)
	if address == "" {
		return domain.Coordinate{}, "", fmt.Errorf("%w: address or lat/lng is required", domain.ErrInvalidStop)
	}

	result, err := h.Geocoder.Geocode(r.Context(), address)
	if err != nil {
		return domain.Coordinate{}, "", fmt.Errorf("geocode %q: %w", address, err)
	}

	return result.Coordinates, result.FormattedAddress, nil
}

// writeResolveError separates caller errors (bad input, an address the
// collaborator cannot resolve) from collaborator outages, which surface
// as 502 the same way sequencing failures do.
func (h *RouteHandler) writeResolveError(w http.ResponseWriter, r *http.Request, what string, err error) {
	log.Printf("resolve point failed: %s: %v", what, err)

	if errors.Is(err, domain.ErrInvalidStop) {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("%s: %v", what, err))
		return
	}

	var ce *domain.CollaboratorError
	if errors.As(err, &ce) {
		switch ce.Status {
		case "ZERO_RESULTS", "NOT_FOUND":
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("%s: address could not be resolved", what))
			return
		}
		writeError(w, r, http.StatusBadGateway, fmt.Sprintf("unable to resolve %s at this time (%s)", what, ce.Status))
		return
	}

	writeError(w, r, http.StatusBadGateway, fmt.Sprintf("unable to resolve %s at this time", what))
}

func (h *RouteHandler) writePlanError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("plan route failed: %v", err)

	if errors.Is(err, domain.ErrInvalidStop) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var ce *domain.CollaboratorError
	if errors.As(err, &ce) {
		writeError(w, r, http.StatusBadGateway, fmt.Sprintf("unable to compute route at this time (%s)", ce.Status))
		return
	}

	if errors.Is(err, domain.ErrDistanceUnavailable) {
		writeError(w, r, http.StatusBadGateway, "unable to compute route at this time")
		return
	}

	writeError(w, r, http.StatusInternalServerError, "internal server error")
}

func planToResponse(plan *domain.RoutePlan, stops []domain.StopPoint) dto.PlanRouteResponse {
	byID := make(map[string]domain.StopPoint, len(stops))
	for _, s := range stops {
		byID[s.ID] = s
	}

	res := dto.PlanRouteResponse{
		Depot:                dto.LatLng{Lat: plan.Depot.Lat, Lng: plan.Depot.Lng},
		Order:                plan.Order,
		Stops:                make([]dto.StopResponse, 0, len(plan.Order)),
		Legs:                 make([]dto.LegResponse, 0, len(plan.Legs)),
		TotalDistanceMeters:  plan.TotalDistanceMeters,
		TotalDurationSeconds: plan.TotalDurationSeconds,
		EstimatedReturnTime:  plan.EstimatedReturnTime,
	}

	for _, id := range plan.Order {
		stop := byID[id]
		res.Stops = append(res.Stops, dto.StopResponse{
			ID:          stop.ID,
			Address:     stop.RawAddress,
			Coordinates: dto.LatLng{Lat: stop.Coordinates.Lat, Lng: stop.Coordinates.Lng},
		})
	}

	for _, leg := range plan.Legs {
		polyline := make([]dto.LatLng, 0, len(leg.Polyline))
		for _, p := range leg.Polyline {
			polyline = append(polyline, dto.LatLng{Lat: p.Lat, Lng: p.Lng})
		}

		res.Legs = append(res.Legs, dto.LegResponse{
			From:            leg.FromStopID,
			To:              leg.ToStopID,
			DistanceMeters:  leg.DistanceMeters,
			DurationSeconds: leg.DurationSeconds,
			Polyline:        polyline,
		})
	}

	return res
}
