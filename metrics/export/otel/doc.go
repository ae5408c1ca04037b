// Package otel publishes otpgate engine metrics through an OpenTelemetry meter.
//
// Every counter becomes an Int64ObservableCounter and every latency histogram
// bucket an Int64ObservableGauge. One callback reads the engine snapshot per
// collection. The caller owns the MeterProvider.
package otel
