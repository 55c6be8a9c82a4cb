package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/klxm/synch/internal/api"
	"github.com/klxm/synch/internal/status"
	"github.com/klxm/synch/internal/sync"
	"github.com/klxm/synch/internal/sync/mocks"
)

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	// health check doesn't call the manager
	server := api.NewServer(mocks.NewMockManager(ctrl))

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response["status"])
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		stateErr       error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "state readable",
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name:           "state unreadable",
			stateErr:       errors.New("permission denied"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "Sync state not readable: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			m := mocks.NewMockManager(ctrl)
			m.EXPECT().State(gomock.Any()).Return(&status.SyncState{}, tt.stateErr)

			rr := httptest.NewRecorder()
			api.NewServer(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	rr := httptest.NewRecorder()
	api.NewServer(mocks.NewMockManager(ctrl)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response["version"])
	assert.NotEmpty(t, response["go_version"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("synch_sync_duration_seconds_count 1\n"))
	})

	rr := httptest.NewRecorder()
	api.NewServer(mocks.NewMockManager(ctrl), api.WithMetricsHandler(metrics)).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "synch_sync_duration_seconds_count")

	rr = httptest.NewRecorder()
	api.NewServer(mocks.NewMockManager(ctrl)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	var called bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	server := api.NewServer(mocks.NewMockManager(ctrl), api.WithMiddlewares(mw, api.LoggingMiddleware))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAutoSyncMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		origin string
		expect bool
	}{
		{name: "frontend request triggers", origin: "frontend", expect: true},
		{name: "backend request triggers", origin: "backend", expect: true},
		{name: "no origin", origin: ""},
		{name: "scheduler is not a request origin", origin: "scheduler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			m := mocks.NewMockManager(ctrl)
			if tt.expect {
				m.EXPECT().AutoSync(gomock.Any(), sync.Origin(tt.origin)).
					Return(sync.ReasonChangesDetected, &sync.Report{
						RunID: "r1",
						Kinds: []sync.KindReport{{Kind: "modules", Err: errors.New("locked")}},
					})
			}

			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})

			req := httptest.NewRequest(http.MethodGet, "/page", nil)
			if tt.origin != "" {
				req.Header.Set(api.OriginHeader, tt.origin)
			}
			rr := httptest.NewRecorder()
			api.AutoSyncMiddleware(m)(next).ServeHTTP(rr, req)

			// a failed sync never fails the request
			assert.Equal(t, http.StatusTeapot, rr.Code)
		})
	}
}
