package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klxm/synch/internal/api/common"
	"github.com/klxm/synch/internal/sync"
	"github.com/klxm/synch/internal/versions"
)

// HealthRouter creates a router for health check endpoints
func HealthRouter(manager sync.Manager) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(manager))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once the sync state can be read
func readinessHandler(manager sync.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := manager.State(r.Context()); err != nil {
			common.WriteErrorResponse(w, "Sync state not readable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
