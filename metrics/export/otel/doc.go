// Package otel binds bizAuth engine metrics to an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter and each histogram bucket an
// Int64ObservableGauge; a single callback reads Engine.MetricsSnapshot per
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
