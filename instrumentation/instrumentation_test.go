package instrumentation

import (
	"context"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.Metrics() == nil {
		t.Error("Metrics() should not be nil")
	}
	if inst.Meter("http") == nil {
		t.Error("Meter() should not be nil")
	}
	if inst.Tracer("server") == nil {
		t.Error("Tracer() should not be nil")
	}
}

func TestNew_Disabled(t *testing.T) {
	inst, err := New(Config{ServiceName: "odoogate-test", Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Recording against no-op providers must not panic.
	ctx := context.Background()
	m := inst.Metrics()
	m.RecordHTTPRequest(ctx, "POST", "/auth/login", 200, 12.5)
	m.RecordLoginAttempt(ctx, "success")
	m.RecordTokenValidation(ctx, "session", "success")
	m.RecordRateLimitExceeded(ctx, "login")
	m.RecordSessionsEvicted(ctx, 3)
	m.RecordUpstreamCall(ctx, "authenticate", nil, 42.0)
}

func TestRecordHelpers_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	// All helpers must tolerate a nil receiver so callers without
	// instrumentation never need to guard.
	m.RecordHTTPRequest(ctx, "GET", "/health", 200, 1)
	m.RecordLoginAttempt(ctx, "auth_failed")
	m.RecordTokenValidation(ctx, "signed", "invalid")
	m.RecordRateLimitExceeded(ctx, "api")
	m.RecordSessionsEvicted(ctx, 1)
	m.RecordUpstreamCall(ctx, "read", nil, 5)
}

func TestRegisterSessionCountCallback(t *testing.T) {
	inst, err := New(Config{ServiceName: "odoogate-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := inst.RegisterSessionCountCallback(func() int64 { return 7 }); err != nil {
		t.Errorf("RegisterSessionCountCallback() error = %v", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("first Shutdown() error = %v", err)
	}
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
