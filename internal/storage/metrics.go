package storage

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/harborview/marisk/internal/telemetry"
)

// RegisterPoolMetrics exports connection-pool gauges through the global
// meter provider. Call once after New; with OTEL disabled the gauges are
// no-ops.
func (db *DB) RegisterPoolMetrics() {
	meter := telemetry.Meter("marisk/storage")

	_, _ = meter.Int64ObservableGauge("marisk.db.connections_total",
		metric.WithDescription("Total connections held by the pool"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().TotalConns()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("marisk.db.connections_idle",
		metric.WithDescription("Idle connections in the pool"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().IdleConns()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("marisk.db.acquire_empty_total",
		metric.WithDescription("Acquires that waited because the pool was empty"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(db.pool.Stat().EmptyAcquireCount())
			return nil
		}),
	)
}
