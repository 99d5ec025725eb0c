// Package instrumentation provides OpenTelemetry metrics and tracing for the
// odoogate gateway.
//
// The package is built around a single Instrumentation value created at
// startup and injected into the layers that emit telemetry (HTTP handler,
// server, session store, reaper, verifier client). When disabled, no-op
// providers are used and all recording paths have effectively zero overhead,
// so callers never need to guard their telemetry calls.
//
// Metric instruments cover the gateway's operational surface: HTTP request
// counts and durations, login outcomes, token validation outcomes split by
// mode (session lookup vs. signed verification), rate limit rejections,
// reaper evictions, an active-session gauge, and upstream verifier call
// latencies.
package instrumentation
