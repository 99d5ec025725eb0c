package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys.
//
// Never put credential values (passwords, bearer tokens, signing secrets) in
// traces. Only metadata such as result codes, token modes, and subject IDs
// belongs here: traces are persisted, replicated, and readable by a wider
// audience than the process itself.
const (
	AttrSubjectID   = "auth.subject_id"  // Numeric subject identifier (non-secret)
	AttrLoginResult = "auth.result"      // Login or validation outcome
	AttrTokenMode   = "auth.token_mode"  // "session" or "signed" - never the token
	AttrClientIP    = "security.client_ip"
	AttrEndpoint    = "http.endpoint"
	AttrHTTPMethod  = "http.method"
	AttrHTTPStatus  = "http.status_code"
	AttrUpstreamOp  = "verifier.operation"
)

// RecordError records an error on a span with proper status codes (nil-safe).
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe).
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe).
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
