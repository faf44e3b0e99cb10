// Package prometheus renders goSession client metrics in the Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads a [goSession.Client]; mount [PrometheusExporter.Handler]
// wherever the process exposes metrics. Counters are named gosession_*_total and the
// refresh latency histogram is gosession_refresh_latency_seconds.
//
// Nothing is registered in a global registry.
package prometheus
