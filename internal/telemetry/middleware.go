package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// HTTPMetricsMeterName is the name used for the HTTP metrics meter
	HTTPMetricsMeterName = "github.com/klxm/synch/http"

	syncRoutePrefix = "/v1/sync"
	unknownRoute    = "unknown_route"

	// kindAll labels sync requests that do not name a kind
	kindAll   = "all"
	kindOther = "other"
)

// HTTPMetrics records the control API traffic. Requests below /v1/sync
// also carry the kind they target and the outcome of the run.
type HTTPMetrics struct {
	latency  metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter

	// kinds are the kind names accepted as attribute values
	kinds map[string]bool
}

// NewHTTPMetrics creates HTTPMetrics on provider. kinds lists the kind names
// that may appear as the kind attribute; other values are folded into "other".
// A nil provider yields nil metrics, which pass requests through untouched.
func NewHTTPMetrics(provider metric.MeterProvider, kinds ...string) (*HTTPMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter(HTTPMetricsMeterName)

	latency, err := meter.Float64Histogram(
		"synch_http_request_duration_seconds",
		metric.WithDescription("Duration of control API requests, including the sync runs they start"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter(
		"synch_http_requests_total",
		metric.WithDescription("Control API requests by route, kind and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"synch_http_sync_requests_in_flight",
		metric.WithDescription("Requests below /v1/sync being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		known[k] = true
	}
	return &HTTPMetrics{latency: latency, requests: requests, inFlight: inFlight, kinds: known}, nil
}

// Middleware records every request passing through next
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the request context may be cancelled once ServeHTTP returns
		ctx := r.Context()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		syncRequest := strings.HasPrefix(r.URL.Path, syncRoutePrefix)
		if syncRequest {
			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)
		}

		next.ServeHTTP(ww, r)

		attrs := metric.WithAttributes(m.requestAttributes(r, ww.Status(), syncRequest)...)
		m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		m.requests.Add(ctx, 1, attrs)
	})
}

func (m *HTTPMetrics) requestAttributes(r *http.Request, status int, syncRequest bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("method", r.Method),
		attribute.String("route", routePattern(r)),
		attribute.String("status_code", strconv.Itoa(status)),
		attribute.String("outcome", outcome(status)),
	}
	if syncRequest {
		attrs = append(attrs, attribute.String("kind", m.kindOf(r)))
	}
	return attrs
}

// kindOf returns the {kind} route parameter, or "all" when the route has none
func (m *HTTPMetrics) kindOf(r *http.Request) string {
	kind := chi.URLParam(r, "kind")
	switch {
	case kind == "":
		return kindAll
	case m.kinds[kind]:
		return kind
	default:
		return kindOther
	}
}

// outcome classifies a status code; 207 means the run finished with item failures
func outcome(status int) string {
	switch {
	case status == http.StatusMultiStatus:
		return "partial"
	case status < http.StatusBadRequest:
		return "ok"
	case status < http.StatusInternalServerError:
		return "rejected"
	default:
		return "failed"
	}
}

// routePattern returns the chi pattern ("/v1/sync/kinds/{kind}") rather
// than the raw path so unknown URLs share one series
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unknownRoute
}

// MetricsMiddleware combines NewHTTPMetrics and Middleware
func MetricsMiddleware(provider metric.MeterProvider, kinds ...string) (func(http.Handler) http.Handler, error) {
	metrics, err := NewHTTPMetrics(provider, kinds...)
	if err != nil {
		return nil, err
	}
	return metrics.Middleware, nil
}
