package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"delivery-sequencer-service/internal/platform/obs"
)

// writeJSON encodes v with the given status. The status line is already
// committed when encoding starts, so encode failures can only be logged.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		reqID, _ := r.Context().Value(obs.RequestIDKey).(string)
		log.Printf("response encode failed: req_id=%s path=%s err=%v", reqID, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
