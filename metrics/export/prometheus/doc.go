// Package prometheus renders bizAuth engine metrics in the Prometheus text
// exposition format without a client library. Counters are named
// bizauth_*_total; login latency is the histogram
// bizauth_login_latency_seconds and appears only when latency histograms are
// enabled.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount Handler.
//   - Mutate engine state.
package prometheus
