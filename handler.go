package odoogate

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/odoogate/odoogate/instrumentation"
	"github.com/odoogate/odoogate/security"
)

const (
	tokenTypeBearer = "Bearer"

	// maxBodyBytes caps request bodies; login payloads are tiny.
	maxBodyBytes = 16 << 10
)

// Handler exposes the gateway over HTTP. Every request flows through the
// gate: rate limiter, then input validation, then (on protected routes)
// bearer token authentication, then the handler.
type Handler struct {
	server  *Server
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	loginLimiter *security.RateLimiter
	apiLimiter   *security.RateLimiter

	mux http.Handler
}

// NewHandler creates the HTTP handler and its rate limiters.
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := server.config

	h := &Handler{
		server:       server,
		logger:       logger,
		metrics:      server.metrics,
		loginLimiter: security.NewRateLimiter(cfg.LoginRateCeiling, cfg.RateWindow, logger),
		apiLimiter:   security.NewRateLimiter(cfg.APIRateCeiling, cfg.RateWindow, logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.serveHealth)
	mux.HandleFunc("POST /auth/login", h.serveLogin)
	mux.HandleFunc("POST /auth/logout", h.serveLogout)
	mux.HandleFunc("GET /auth/user", h.serveUser)
	mux.HandleFunc("POST /odoo/test", h.serveDiagnostics)
	mux.HandleFunc("OPTIONS /", h.servePreflight)
	mux.HandleFunc("/", h.serveNotFound)

	h.mux = security.RequestIDMiddleware(h.recover(h.observe(mux)))

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Stop releases the handler's background resources (rate limiter cleanup
// loops). Safe to call more than once.
func (h *Handler) Stop() {
	h.loginLimiter.Stop()
	h.apiLimiter.Stop()
}

// clientIP resolves the caller identity used for rate limiting and auditing.
func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.config.TrustProxyHeaders, h.server.config.TrustedProxyCount)
}

// recover is the catch-all error handler: a panicking request returns a JSON
// 500 instead of killing the process.
func (h *Handler) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("Panic while handling request",
					"path", r.URL.Path,
					"method", r.Method,
					"panic", fmt.Sprint(rec))
				h.writeAPIError(w, r, ErrInternal("Internal server error"), "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// observe records per-request metrics and access logs.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		h.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status,
			float64(elapsed.Milliseconds()))
		h.logger.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", security.GetRequestID(r.Context()))
	})
}

// checkRateLimit applies the given limiter. Returns true when the request was
// rejected and a response already written.
func (h *Handler) checkRateLimit(w http.ResponseWriter, r *http.Request, limiter *security.RateLimiter, limiterType string) bool {
	clientIP := h.clientIP(r)
	if limiter.Allow(clientIP) {
		return false
	}

	h.metrics.RecordRateLimitExceeded(r.Context(), limiterType)
	h.server.auditor.LogRateLimitExceeded(clientIP, r.URL.Path)
	h.logger.Warn("Rate limit exceeded",
		"ip", clientIP,
		"endpoint", r.URL.Path,
		"limiter", limiterType)

	h.writeAPIError(w, r, ErrRateLimited("Too many requests. Please try again later."), "")
	return true
}

// extractBearerToken pulls the token from the Authorization header.
// Returns the empty string when no well-formed bearer header is present.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], tokenTypeBearer) {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid JSON")
	}
	return nil
}

// serveHealth reports process liveness. Not gated: health probes must work
// even when the upstream is down or the caller is rate limited.
func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, healthResponse{
		Status:      "ok",
		Service:     ServiceName,
		Timestamp:   h.server.now().UTC().Format(time.RFC3339),
		Environment: h.server.config.Environment,
	})
}

// serveLogin handles POST /auth/login: rate limit, validate, verify upstream,
// mint tokens, store session.
func (h *Handler) serveLogin(w http.ResponseWriter, r *http.Request) {
	if h.checkRateLimit(w, r, h.loginLimiter, "login") {
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeAPIError(w, r, ErrInvalidInput("Invalid login payload"), err.Error())
		return
	}
	if err := validateLoginRequest(&req); err != nil {
		h.writeAPIError(w, r, ErrInvalidInput(err.Error()), "")
		return
	}

	result, apiErr := h.server.Login(r.Context(), req.Username, req.Password, h.clientIP(r))
	if apiErr != nil {
		h.writeAPIError(w, r, apiErr, "")
		return
	}

	h.writeJSON(w, r, http.StatusOK, loginResponse{
		Success:     true,
		Token:       result.Token,
		SignedToken: result.SignedToken,
		User:        result.Subject,
		ExpiresIn:   result.ExpiresIn,
	})
}

// serveLogout handles POST /auth/logout. Always succeeds: the token may come
// from the body, the bearer header, or be absent entirely.
func (h *Handler) serveLogout(w http.ResponseWriter, r *http.Request) {
	if h.checkRateLimit(w, r, h.apiLimiter, "api") {
		return
	}

	tokenString := extractBearerToken(r)

	var req logoutRequest
	if err := decodeJSON(r, &req); err == nil && req.Token != "" {
		tokenString = req.Token
	}

	h.server.Logout(r.Context(), tokenString, h.clientIP(r))

	h.writeJSON(w, r, http.StatusOK, logoutResponse{Success: true})
}

// serveUser handles GET /auth/user: bearer token required.
func (h *Handler) serveUser(w http.ResponseWriter, r *http.Request) {
	if h.checkRateLimit(w, r, h.apiLimiter, "api") {
		return
	}

	subject, _, apiErr := h.server.Authenticate(r.Context(), extractBearerToken(r), h.clientIP(r))
	if apiErr != nil {
		h.writeAPIError(w, r, apiErr, "")
		return
	}

	h.writeJSON(w, r, http.StatusOK, userResponse{User: subject})
}

// serveDiagnostics handles POST /odoo/test: a passthrough to the upstream
// through the session's verifier handle. Requires a session token; a signed
// token carries no handle and cannot reach the upstream.
func (h *Handler) serveDiagnostics(w http.ResponseWriter, r *http.Request) {
	if h.checkRateLimit(w, r, h.apiLimiter, "api") {
		return
	}

	_, session, apiErr := h.server.Authenticate(r.Context(), extractBearerToken(r), h.clientIP(r))
	if apiErr != nil {
		h.writeAPIError(w, r, apiErr, "")
		return
	}

	stats, apiErr := h.server.Diagnostics(r.Context(), session)
	if apiErr != nil {
		h.writeAPIError(w, r, apiErr, "")
		return
	}

	h.writeJSON(w, r, http.StatusOK, diagnosticResponse{
		Success:   true,
		Stats:     stats,
		Timestamp: h.server.now().UTC().Format(time.RFC3339),
	})
}

// servePreflight answers CORS preflight requests for the configured frontend.
func (h *Handler) servePreflight(w http.ResponseWriter, r *http.Request) {
	h.setCommonHeaders(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// serveNotFound answers unmatched routes.
func (h *Handler) serveNotFound(w http.ResponseWriter, r *http.Request) {
	h.setCommonHeaders(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(notFoundResponse{
		Error:     "Endpoint not found",
		Path:      r.URL.Path,
		Method:    r.Method,
		Timestamp: h.server.now().UTC().Format(time.RFC3339),
	})
}

// setCommonHeaders applies security and CORS headers to every response.
func (h *Handler) setCommonHeaders(w http.ResponseWriter, r *http.Request) {
	security.SetSecurityHeaders(w)

	frontend := h.server.config.FrontendURL
	if frontend != "" && r.Header.Get("Origin") == frontend {
		w.Header().Set("Access-Control-Allow-Origin", frontend)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Vary", "Origin")
	}
}

// writeJSON writes a success response.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	h.setCommonHeaders(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeAPIError writes an error response. The message is redacted before it
// leaves the process; details are included only outside production.
func (h *Handler) writeAPIError(w http.ResponseWriter, r *http.Request, apiErr *APIError, details string) {
	h.setCommonHeaders(w, r)

	if apiErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", tokenTypeBearer)
	}

	resp := errorResponse{
		Error:     security.Redact(apiErr.Message),
		Code:      apiErr.Code,
		Timestamp: h.server.now().UTC().Format(time.RFC3339),
	}
	if details != "" && !h.server.config.IsProduction() {
		resp.Details = security.Redact(details)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
