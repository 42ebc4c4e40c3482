package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// StatusSource provides the latest decoded status snapshots.
type StatusSource interface {
	Snapshot() map[string]any
	SnapshotFor(deviceID string) (any, bool)
}

// StatusHandler serves the last decoded status for every device at
// /devices, and for one device at /devices/{id}.
func StatusHandler(source StatusSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/devices")
		rest = strings.Trim(rest, "/")

		var payload any
		if rest == "" {
			payload = source.Snapshot()
		} else {
			status, ok := source.SnapshotFor(rest)
			if !ok {
				http.NotFound(w, r)
				return
			}
			payload = status
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(payload)
	})
}
