// Package prometheus exposes engine counters and the validate latency
// histogram to Prometheus.
//
// [PrometheusExporter] is a collector to register with a
// prometheus.Registry; its Handler renders the same series without one.
// Counter names are devauth_*_total; the histogram is
// devauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry; callers choose the registry.
//   - Mutate engine state.
package prometheus
