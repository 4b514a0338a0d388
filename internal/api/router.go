package api

import (
	"net/http"

	"delivery-sequencer-service/internal/api/handlers"
	"delivery-sequencer-service/internal/ports"
	"delivery-sequencer-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(
	sequencer *services.Sequencer,
	geocoder ports.Geocoder,
	janitor *services.Janitor,
	stats handlers.StatsSource,
) http.Handler {
	mux := http.NewServeMux()

	routeHandler := &handlers.RouteHandler{
		Sequencer: sequencer,
		Geocoder:  geocoder,
	}
	cleanupHandler := &handlers.CleanupHandler{Janitor: janitor}
	statsHandler := &handlers.StatsHandler{Oracle: stats}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/routes/plan", routeHandler.Plan)
	mux.HandleFunc("/admin/cache/cleanup", cleanupHandler.Cleanup)
	mux.HandleFunc("/admin/oracle/stats", statsHandler.Stats)

	return requestIDMiddleware(loggingMiddleware(mux))
}
