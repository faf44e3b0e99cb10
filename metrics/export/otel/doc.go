// Package otel exposes goSession client metrics through an OpenTelemetry meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per client counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// [goSession.Client.MetricsSnapshot] on each collection.
//
// The caller owns the MeterProvider.
package otel
