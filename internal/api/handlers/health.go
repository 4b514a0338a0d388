package handlers

import (
	"net/http"
)

// Health is the liveness probe. It reports process health only; fact-store
// and collaborator reachability are not part of the probe.
func Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "delivery-sequencer",
	})
}
