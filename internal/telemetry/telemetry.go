// Package telemetry provides OpenTelemetry metrics for synch, exported in
// the Prometheus text format.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/klxm/synch/internal/logger"
)

// DefaultServiceName is the default service name for telemetry
const DefaultServiceName = "synch"

// Telemetry owns the meter provider and the registry its exporter writes to
type Telemetry struct {
	meterProvider metric.MeterProvider
	registry      *prometheus.Registry
}

// Option is a function that configures the telemetry setup
type Option func(*telemetryConfig)

// telemetryConfig holds the configuration for creating telemetry
type telemetryConfig struct {
	enabled        bool
	serviceVersion string
}

// WithEnabled turns metrics collection on
func WithEnabled(enabled bool) Option {
	return func(tc *telemetryConfig) {
		tc.enabled = enabled
	}
}

// WithServiceVersion sets the version reported as a resource attribute
func WithServiceVersion(version string) Option {
	return func(tc *telemetryConfig) {
		tc.serviceVersion = version
	}
}

// New creates a Telemetry instance. When disabled the meter provider is a
// no-op and Handler serves an empty registry.
// The caller is responsible for calling Shutdown when the application exits.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	cfg := &telemetryConfig{serviceVersion: "unknown"}
	for _, opt := range opts {
		opt(cfg)
	}

	registry := prometheus.NewRegistry()
	meterProvider, err := NewMeterProvider(ctx,
		WithMeterServiceName(DefaultServiceName),
		WithMeterServiceVersion(cfg.serviceVersion),
		WithMetricsEnabled(cfg.enabled),
		WithRegisterer(registry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}

	return &Telemetry{
		meterProvider: meterProvider,
		registry:      registry,
	}, nil
}

// MeterProvider returns the configured meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// Handler serves the collected metrics
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider. It is safe to call multiple times.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown meter provider: %w", err)
		}
		logger.Debugf("Meter provider shutdown complete")
	}
	return nil
}
