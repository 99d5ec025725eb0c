package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. User identity
// is hashed before logging so audit trails can be correlated without storing
// raw logins.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event.
type Event struct {
	Type      string
	Login     string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// Audit event types.
const (
	EventLoginSuccess      = "login_success"
	EventLoginFailed       = "login_failed"
	EventLogout            = "logout"
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventTokenRejected     = "token_rejected"
	EventSessionEvicted    = "session_evicted"
)

// LogEvent logs a security event with hashed PII.
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"login_hash", hashForLogging(event.Login),
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogLoginSuccess logs a successful credential verification.
func (a *Auditor) LogLoginSuccess(login, ipAddress string, subjectID int64) {
	a.LogEvent(Event{
		Type:      EventLoginSuccess,
		Login:     login,
		IPAddress: ipAddress,
		Details:   map[string]any{"subject_id": subjectID},
	})
}

// LogLoginFailed logs a failed login attempt. The reason is for operators
// only and is never echoed to the caller.
func (a *Auditor) LogLoginFailed(login, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventLoginFailed,
		Login:     login,
		IPAddress: ipAddress,
		Details:   map[string]any{"reason": reason},
	})
}

// LogLogout logs a session termination.
func (a *Auditor) LogLogout(ipAddress string) {
	a.LogEvent(Event{
		Type:      EventLogout,
		IPAddress: ipAddress,
	})
}

// LogRateLimitExceeded logs a rate limit rejection.
func (a *Auditor) LogRateLimitExceeded(ipAddress, endpoint string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		IPAddress: ipAddress,
		Details:   map[string]any{"endpoint": endpoint},
	})
}

// LogTokenRejected logs a bearer token that failed authentication.
func (a *Auditor) LogTokenRejected(ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventTokenRejected,
		IPAddress: ipAddress,
		Details:   map[string]any{"reason": reason},
	})
}

// LogSessionsEvicted logs a reaper sweep that removed idle sessions.
func (a *Auditor) LogSessionsEvicted(count int) {
	if count == 0 {
		return
	}
	a.LogEvent(Event{
		Type:    EventSessionEvicted,
		Details: map[string]any{"count": count},
	})
}

// hashForLogging returns a short SHA-256 digest prefix of the value, or empty
// for empty input. Sufficient for correlation without being reversible.
func hashForLogging(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}
