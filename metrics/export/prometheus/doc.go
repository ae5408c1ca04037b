// Package prometheus renders otpgate engine metrics in the Prometheus text
// exposition format.
//
// Counters are named otpgate_*_total. Login and Authorize latency are exported
// as the otpgate_login_latency_seconds and otpgate_authorize_latency_seconds
// histograms. Nothing is registered globally; callers mount [Exporter.Handler].
package prometheus
