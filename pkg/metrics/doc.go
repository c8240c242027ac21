// Package metrics exposes Prometheus collectors for the metering service.
//
// A single *Metrics satisfies the observer interfaces of the gate, usage and
// entitlement packages, so degraded store calls and fail-open fallbacks are
// countable without those packages importing Prometheus.
package metrics
