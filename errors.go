package odoogate

import (
	"fmt"
	"net/http"
)

// Gateway error codes as constants
const (
	ErrorCodeRateLimited     = "RATE_LIMITED"
	ErrorCodeInvalidInput    = "INVALID_INPUT"
	ErrorCodeAuthFailed      = "AUTH_FAILED"
	ErrorCodeMissingToken    = "MISSING_TOKEN"
	ErrorCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrorCodeInvalidToken    = "INVALID_TOKEN"
	ErrorCodeUpstreamFailure = "UPSTREAM_FAILURE"
	ErrorCodeInternal        = "INTERNAL"
)

// APIError represents a gateway error response.
type APIError struct {
	Code    string // Error code (e.g. "AUTH_FAILED", "RATE_LIMITED")
	Message string // Human-readable error message, safe to show callers
	Status  int    // HTTP status code
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new gateway error
func NewAPIError(code, message string, status int) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Common gateway errors as reusable instances.
//
// Token failures on protected routes all map to 401; the source behavior was
// inconsistent between 401 and 403 here, so one status per failure kind is
// fixed below. Message text is part of the contract: AuthFailed must be
// byte-identical for bad credentials, upstream outage, and verifier timeout.
var (
	// ErrRateLimited indicates the caller exceeded a rate ceiling
	ErrRateLimited = func(desc string) *APIError {
		return NewAPIError(ErrorCodeRateLimited, desc, http.StatusTooManyRequests)
	}

	// ErrInvalidInput indicates a malformed request payload
	ErrInvalidInput = func(desc string) *APIError {
		return NewAPIError(ErrorCodeInvalidInput, desc, http.StatusBadRequest)
	}

	// ErrAuthFailed is the single generic login failure. Never vary the
	// message by cause.
	ErrAuthFailed = func() *APIError {
		return NewAPIError(ErrorCodeAuthFailed, "Authentication failed", http.StatusUnauthorized)
	}

	// ErrMissingToken indicates a protected route was called with no bearer token
	ErrMissingToken = func() *APIError {
		return NewAPIError(ErrorCodeMissingToken, "Authentication token required", http.StatusUnauthorized)
	}

	// ErrTokenExpired indicates a structurally valid signed token past its expiry
	ErrTokenExpired = func() *APIError {
		return NewAPIError(ErrorCodeTokenExpired, "Token expired", http.StatusUnauthorized)
	}

	// ErrInvalidToken indicates a token that resolves to no session and
	// fails signature verification
	ErrInvalidToken = func() *APIError {
		return NewAPIError(ErrorCodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
	}

	// ErrUpstreamFailure indicates the upstream system failed after
	// authentication succeeded
	ErrUpstreamFailure = func(desc string) *APIError {
		return NewAPIError(ErrorCodeUpstreamFailure, desc, http.StatusInternalServerError)
	}

	// ErrInternal indicates an uncaught server-side failure
	ErrInternal = func(desc string) *APIError {
		return NewAPIError(ErrorCodeInternal, desc, http.StatusInternalServerError)
	}
)
