// Package security provides request-gating and hardening primitives for the
// odoogate gateway: per-caller rate limiting, client IP extraction, security
// response headers, request ID propagation, audit logging, and redaction of
// sensitive substrings from caller-visible error text.
//
// # Rate Limiting
//
// The RateLimiter tracks one token bucket per caller identifier (normally the
// client IP) using golang.org/x/time/rate. Buckets are sized from a ceiling
// and a window: a caller may make at most `ceiling` requests in a burst, with
// capacity refilling over `window`. Memory is bounded by LRU eviction plus a
// periodic idle sweep.
//
//	limiter := security.NewRateLimiter(5, 15*time.Minute, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientIP) {
//	    // reject with 429
//	}
package security
