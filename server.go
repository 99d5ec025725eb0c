package odoogate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odoogate/odoogate/instrumentation"
	"github.com/odoogate/odoogate/security"
	"github.com/odoogate/odoogate/storage"
	"github.com/odoogate/odoogate/token"
	"github.com/odoogate/odoogate/verifier"
)

// ServiceName identifies the gateway in health responses and telemetry.
const ServiceName = "odoogate"

// Server implements the gateway logic: login against the upstream verifier,
// dual-mode token authentication, session lifecycle, and the diagnostic
// passthrough. HTTP concerns live in Handler; Server is transport-agnostic.
type Server struct {
	config   *Config
	verifier verifier.Verifier
	sessions storage.SessionStore
	issuer   *token.Issuer
	logger   *slog.Logger
	auditor  *security.Auditor
	metrics  *instrumentation.Metrics

	// now is the time source; overridden in tests.
	now func() time.Time
}

// NewServer creates a gateway server.
func NewServer(
	v verifier.Verifier,
	sessions storage.SessionStore,
	issuer *token.Issuer,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if v == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if config == nil {
		config = &Config{}
	}
	config.Sanitize()

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   config,
		verifier: v,
		sessions: sessions,
		issuer:   issuer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// SetAuditor enables security audit logging.
func (s *Server) SetAuditor(auditor *security.Auditor) {
	s.auditor = auditor
}

// SetInstrumentation wires the server into metrics collection.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	if inst != nil {
		s.metrics = inst.Metrics()
	}
}

// Sessions returns the session store the server was built with.
func (s *Server) Sessions() storage.SessionStore { return s.sessions }

// LoginResult is a successful login: the opaque session token, the signed
// claims token, the subject profile, and the signed token lifetime in seconds.
type LoginResult struct {
	Token       string
	SignedToken string
	Subject     verifier.Subject
	ExpiresIn   int64
}

// authOutcome carries the verifier call result across the timeout race.
type authOutcome struct {
	client verifier.Client
	err    error
}

// Login verifies the credentials upstream, fetches the subject profile, mints
// both token forms, and stores the session.
//
// Every failure to establish who the caller is collapses into the same
// AUTH_FAILED response: wrong password, unreachable upstream, and verifier
// timeout are indistinguishable to the caller. Only a profile-fetch failure
// after successful verification surfaces as UPSTREAM_FAILURE, since at that
// point the credentials are known good.
func (s *Server) Login(ctx context.Context, username, password, clientIP string) (*LoginResult, *APIError) {
	client, apiErr := s.verifyWithTimeout(ctx, username, password, clientIP)
	if apiErr != nil {
		return nil, apiErr
	}

	subject, err := s.fetchSubject(ctx, client, username)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			s.logger.Warn("Failed to close verifier handle after profile fetch failure", "error", closeErr)
		}
		s.metrics.RecordLoginAttempt(ctx, "upstream_failure")
		s.logger.Error("Profile fetch failed after successful authentication",
			"uid", client.UID(), "error", security.Redact(err.Error()))
		return nil, ErrUpstreamFailure("Failed to load user profile")
	}

	signed, opaque, err := s.issuer.Issue(subject)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			s.logger.Warn("Failed to close verifier handle after issue failure", "error", closeErr)
		}
		s.metrics.RecordLoginAttempt(ctx, "internal")
		s.logger.Error("Token issuance failed", "error", err)
		return nil, ErrInternal("Failed to issue tokens")
	}

	now := s.now()
	if err := s.sessions.Put(ctx, &storage.Session{
		Token:        opaque,
		Subject:      subject,
		Handle:       client,
		CreatedAt:    now,
		LastAccessAt: now,
	}); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			s.logger.Warn("Failed to close verifier handle after store failure", "error", closeErr)
		}
		s.metrics.RecordLoginAttempt(ctx, "internal")
		s.logger.Error("Session store insert failed", "error", err)
		return nil, ErrInternal("Failed to create session")
	}

	s.metrics.RecordLoginAttempt(ctx, "success")
	s.auditor.LogLoginSuccess(username, clientIP, subject.ID)
	s.logger.Info("Login succeeded", "subject_id", subject.ID)

	return &LoginResult{
		Token:       opaque,
		SignedToken: signed,
		Subject:     subject,
		ExpiresIn:   int64(token.DefaultTTL.Seconds()),
	}, nil
}

// verifyWithTimeout races the upstream verifier call against the configured
// timeout. Whichever settles first wins; a verifier result arriving after the
// timeout is discarded (its handle closed) and never mutates shared state.
func (s *Server) verifyWithTimeout(ctx context.Context, username, password, clientIP string) (verifier.Client, *APIError) {
	// Buffered so a losing verifier goroutine never blocks forever.
	results := make(chan authOutcome, 1)

	go func() {
		// A panicking verifier must not take the process down; it fails
		// the login like any other upstream error.
		defer func() {
			if rec := recover(); rec != nil {
				results <- authOutcome{err: fmt.Errorf("verifier panic: %v", rec)}
			}
		}()
		client, err := s.verifier.Authenticate(ctx, username, password)
		results <- authOutcome{client: client, err: err}
	}()

	timer := time.NewTimer(s.config.VerifyTimeout)
	defer timer.Stop()

	var outcome authOutcome
	select {
	case outcome = <-results:
	case <-timer.C:
		// The race is lost. Reap the eventual result so the handle is
		// not leaked, then fail exactly like a bad credential.
		go func() {
			if late := <-results; late.client != nil {
				_ = late.client.Close()
			}
		}()
		s.metrics.RecordLoginAttempt(ctx, "timeout")
		s.auditor.LogLoginFailed(username, clientIP, "verifier timeout")
		s.logger.Warn("Verifier timed out", "timeout", s.config.VerifyTimeout)
		return nil, ErrAuthFailed()
	case <-ctx.Done():
		go func() {
			if late := <-results; late.client != nil {
				_ = late.client.Close()
			}
		}()
		s.metrics.RecordLoginAttempt(ctx, "canceled")
		return nil, ErrAuthFailed()
	}

	if outcome.err != nil {
		s.metrics.RecordLoginAttempt(ctx, "auth_failed")
		if errors.Is(outcome.err, verifier.ErrInvalidCredentials) {
			s.auditor.LogLoginFailed(username, clientIP, "invalid credentials")
			s.logger.Info("Login rejected by upstream")
		} else {
			s.auditor.LogLoginFailed(username, clientIP, "upstream unavailable")
			s.logger.Error("Upstream verifier unavailable",
				"error", security.Redact(outcome.err.Error()))
		}
		return nil, ErrAuthFailed()
	}

	return outcome.client, nil
}

// fetchSubject loads the subject's profile fields through the fresh handle.
func (s *Server) fetchSubject(ctx context.Context, client verifier.Client, login string) (verifier.Subject, error) {
	record, err := client.Read(ctx, "res.users", client.UID(),
		[]string{"name", "email", "login"})
	if err != nil {
		return verifier.Subject{}, err
	}

	subject := verifier.Subject{ID: client.UID(), Login: login}
	if name, ok := record["name"].(string); ok {
		subject.Name = name
	}
	if email, ok := record["email"].(string); ok {
		subject.Email = email
	}
	if recordLogin, ok := record["login"].(string); ok && recordLogin != "" {
		subject.Login = recordLogin
	}

	return subject, nil
}

// Logout destroys the session behind the token. Idempotent: unknown, already
// logged out, and absent tokens all succeed silently.
func (s *Server) Logout(ctx context.Context, tokenString, clientIP string) {
	if tokenString == "" {
		return
	}

	session, err := s.sessions.Get(ctx, tokenString)
	if err != nil {
		return
	}

	if err := s.sessions.Delete(ctx, tokenString); err != nil {
		s.logger.Warn("Session delete failed during logout", "error", err)
		return
	}

	s.auditor.LogLogout(clientIP)
	s.logger.Info("Logout", "subject_id", session.Subject.ID)
}

// Authenticate resolves a bearer token to a subject. Session tokens are
// looked up first and refresh the session's last-access time; tokens that
// resolve to no session fall back to stateless signature verification.
// Returns the live session for session tokens, nil for signed tokens.
func (s *Server) Authenticate(ctx context.Context, tokenString, clientIP string) (verifier.Subject, *storage.Session, *APIError) {
	if tokenString == "" {
		s.metrics.RecordTokenValidation(ctx, "none", "missing")
		return verifier.Subject{}, nil, ErrMissingToken()
	}

	now := s.now()

	session, err := s.sessions.Get(ctx, tokenString)
	if err == nil {
		// Idle check mirrors the sweep boundary: exactly at the
		// threshold is still live.
		if now.Sub(session.LastAccessAt) > s.config.SessionIdleTimeout {
			if delErr := s.sessions.Delete(ctx, tokenString); delErr != nil {
				s.logger.Warn("Failed to delete idle session", "error", delErr)
			}
			s.metrics.RecordTokenValidation(ctx, "session", "expired")
			s.auditor.LogTokenRejected(clientIP, "session idle timeout")
			return verifier.Subject{}, nil, ErrTokenExpired()
		}

		if err := s.sessions.Touch(ctx, tokenString, now); err != nil &&
			!errors.Is(err, storage.ErrSessionNotFound) {
			s.logger.Warn("Failed to refresh session access time", "error", err)
		}
		session.LastAccessAt = now

		s.metrics.RecordTokenValidation(ctx, "session", "success")
		return session.Subject, session, nil
	}
	if !errors.Is(err, storage.ErrSessionNotFound) {
		s.logger.Error("Session lookup failed", "error", err)
		return verifier.Subject{}, nil, ErrInternal("Session lookup failed")
	}

	claims, err := s.issuer.Verify(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			s.metrics.RecordTokenValidation(ctx, "signed", "expired")
			s.auditor.LogTokenRejected(clientIP, "signed token expired")
			return verifier.Subject{}, nil, ErrTokenExpired()
		}
		s.metrics.RecordTokenValidation(ctx, "signed", "invalid")
		s.auditor.LogTokenRejected(clientIP, "token invalid")
		return verifier.Subject{}, nil, ErrInvalidToken()
	}

	s.metrics.RecordTokenValidation(ctx, "signed", "success")
	return verifier.Subject{ID: claims.UID, Email: claims.Email}, nil, nil
}

// Diagnostics runs the /odoo/test sub-queries through the session's verifier
// handle. Each sub-query is independently failable: a failure logs, records
// zero for that count, and never fails the whole request.
func (s *Server) Diagnostics(ctx context.Context, session *storage.Session) (*DiagnosticStats, *APIError) {
	if session == nil || session.Handle == nil {
		// Signed tokens carry no verifier handle; the diagnostic
		// endpoint needs a live session.
		return nil, ErrInvalidToken()
	}

	stats := &DiagnosticStats{UID: session.Handle.UID()}

	count := func(model string) int {
		n, err := session.Handle.SearchCount(ctx, model, nil)
		if err != nil {
			s.logger.Warn("Diagnostic sub-query failed",
				"model", model, "error", security.Redact(err.Error()))
			return 0
		}
		return n
	}

	stats.PartnerCount = count("res.partner")
	stats.UserCount = count("res.users")
	stats.CompanyCount = count("res.company")

	return stats, nil
}
