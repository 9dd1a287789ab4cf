package transport

import (
	"encoding/json"
	"net/http"

	"github.com/agentmaild/agentmail/internal/store"
)

// StoreHealth implements Health over a Store, echoing the server-reuse
// fingerprint on liveness and the applied schema version on readiness
// (spec §4.8).
type StoreHealth struct {
	Store       *store.Store
	Versions    store.VersionReader
	ProjectRoot string
}

type livenessBody struct {
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint"`
}

func (h StoreHealth) Liveness(w http.ResponseWriter, r *http.Request) {
	health := h.Store.Health(r.Context(), h.Versions)
	writeHealthJSON(w, http.StatusOK, livenessBody{
		Status:      string(health.Status),
		Fingerprint: Fingerprint(h.ProjectRoot, health.SchemaVersion),
	})
}

func (h StoreHealth) Readiness(w http.ResponseWriter, r *http.Request) {
	health := h.Store.Health(r.Context(), h.Versions)
	status := http.StatusOK
	if health.Status == store.HealthUnavailable {
		status = http.StatusServiceUnavailable
	}
	writeHealthJSON(w, status, health)
}

func writeHealthJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
