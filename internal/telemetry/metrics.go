package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/klxm/synch/sync"

// SyncMetrics holds the OpenTelemetry instruments for sync runs
type SyncMetrics struct {
	syncDuration   metric.Float64Histogram
	itemOperations metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"synch_sync_duration_seconds",
		metric.WithDescription("Duration of a sync of one kind in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	itemOperations, err := meter.Int64Counter(
		"synch_item_operations_total",
		metric.WithDescription("Items written, created, updated or failed by sync runs"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:   syncDuration,
		itemOperations: itemOperations,
	}, nil
}

// RecordSyncDuration records the duration of a sync of one kind
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, kind string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordItemOperations adds count items of operation for kind. Zero counts are dropped.
func (m *SyncMetrics) RecordItemOperations(ctx context.Context, kind, operation string, count int) {
	if m == nil || m.itemOperations == nil || count <= 0 {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.String("operation", operation),
	}

	m.itemOperations.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}
