package server

import (
	"net/http"
)

// HealthHandler answers liveness probes with a bare OK.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
