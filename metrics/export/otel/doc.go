// Package otel exports engine counters and the validate latency histogram as
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter. Each
// histogram becomes a "_bucket" gauge with an "le" attribute and a "_count"
// gauge. When the source also reports health, devauth_backend_up carries one
// series per backend. A single callback reads MetricsSnapshot each collection
// cycle. Callers own the MeterProvider.
package otel
