package api

import (
	"net/http"

	"github.com/klxm/synch/internal/logger"
	"github.com/klxm/synch/internal/sync"
)

// OriginHeader names the request origin for request-triggered syncs
const OriginHeader = "X-Synch-Origin"

// AutoSyncMiddleware runs Manager.AutoSync before requests that carry an
// origin header of "frontend" or "backend". The request always proceeds.
func AutoSyncMiddleware(manager sync.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch origin := sync.Origin(r.Header.Get(OriginHeader)); origin {
			case sync.OriginFrontend, sync.OriginBackend:
				reason, report := manager.AutoSync(r.Context(), origin)
				if report != nil && report.Failed() {
					logger.Warnf("Request-triggered sync %s had failures", report.RunID)
				}
				logger.Debugf("Request-triggered sync (%s): %s", origin, reason)
			}
			next.ServeHTTP(w, r)
		})
	}
}
