package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the gateway.
type Metrics struct {
	// HTTP layer
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Authentication flow
	LoginAttempts    metric.Int64Counter
	TokenValidations metric.Int64Counter

	// Security
	RateLimitExceeded metric.Int64Counter

	// Session storage
	SessionsEvicted metric.Int64Counter
	SessionsActive  metric.Int64ObservableGauge

	// Upstream verifier
	UpstreamCallsTotal   metric.Int64Counter
	UpstreamCallDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments.
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")
	verifierMeter := inst.Meter("verifier")

	var err error

	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"auth.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"auth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	m.LoginAttempts, err = serverMeter.Int64Counter(
		"auth.login.attempts",
		metric.WithDescription("Number of login attempts by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login.attempts counter: %w", err)
	}

	m.TokenValidations, err = serverMeter.Int64Counter(
		"auth.token.validations",
		metric.WithDescription("Number of bearer token validations by mode and result"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.validations counter: %w", err)
	}

	m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"auth.ratelimit.exceeded",
		metric.WithDescription("Number of requests rejected by rate limiting"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.exceeded counter: %w", err)
	}

	m.SessionsEvicted, err = storageMeter.Int64Counter(
		"auth.sessions.evicted",
		metric.WithDescription("Number of idle sessions removed by sweeps"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions.evicted counter: %w", err)
	}

	m.SessionsActive, err = storageMeter.Int64ObservableGauge(
		"auth.sessions.active",
		metric.WithDescription("Current number of live sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions.active gauge: %w", err)
	}

	m.UpstreamCallsTotal, err = verifierMeter.Int64Counter(
		"auth.upstream.calls.total",
		metric.WithDescription("Number of upstream verifier calls by operation and result"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream.calls.total counter: %w", err)
	}

	m.UpstreamCallDuration, err = verifierMeter.Float64Histogram(
		"auth.upstream.call.duration",
		metric.WithDescription("Upstream verifier call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream.call.duration histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with its duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.endpoint", endpoint),
		attribute.Int("http.status_code", statusCode),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, durationMs, attrs)
}

// RecordLoginAttempt records a login attempt outcome
// (result: "success", "auth_failed", "invalid_input", "upstream_failure").
func (m *Metrics) RecordLoginAttempt(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.result", result),
	))
}

// RecordTokenValidation records a bearer token validation
// (mode: "session" or "signed"; result: "success", "expired", "invalid").
func (m *Metrics) RecordTokenValidation(ctx context.Context, mode, result string) {
	if m == nil {
		return
	}
	m.TokenValidations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("auth.token_mode", mode),
		attribute.String("auth.result", result),
	))
}

// RecordRateLimitExceeded records a rate limit rejection
// (limiterType: "login" or "api").
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	if m == nil {
		return
	}
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("security.rate_limiter.type", limiterType),
	))
}

// RecordSessionsEvicted records sessions removed by a sweep.
func (m *Metrics) RecordSessionsEvicted(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.SessionsEvicted.Add(ctx, int64(count))
}

// RecordUpstreamCall records an upstream verifier call with its duration.
func (m *Metrics) RecordUpstreamCall(ctx context.Context, operation string, err error, durationMs float64) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("verifier.operation", operation),
		attribute.String("verifier.result", result),
	)
	m.UpstreamCallsTotal.Add(ctx, 1, attrs)
	m.UpstreamCallDuration.Record(ctx, durationMs, attrs)
}
