package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"delivery-sequencer-service/internal/api/dto"
	"delivery-sequencer-service/internal/ports"
	"delivery-sequencer-service/internal/services"
)

// CleanupHandler triggers a janitor pass on demand.
type CleanupHandler struct {
	Janitor *services.Janitor
}

func (h *CleanupHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.CleanupRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	// An empty body runs cleanup with the default retention and cap.
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}

	report, err := h.Janitor.RunCleanup(r.Context(), req.RetentionDays, req.MaxRecords)
	if err != nil {
		log.Printf("cache cleanup failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.CleanupResponse{
		EvictedByAge:      report.EvictedByAge,
		EvictedByCapacity: report.EvictedByCapacity,
	})
}

// StatsSource exposes oracle observability counters.
type StatsSource interface {
	Stats() ports.OracleStats
}

type StatsHandler struct {
	Oracle StatsSource
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats := h.Oracle.Stats()
	writeJSON(w, r, http.StatusOK, dto.OracleStatsResponse{
		CacheHits:       stats.CacheHits,
		LiveCalls:       stats.LiveCalls,
		DirectionsCalls: stats.DirectionsCalls,
		Retries:         stats.Retries,
	})
}
