// Package odoogate is an authentication gateway in front of an Odoo server.
//
// It verifies username/password credentials against the upstream over
// JSON-RPC and, on success, hands the caller two token forms: an opaque
// session token backing an in-memory session (with the upstream client
// handle bound to it) and a signed claims token verifiable without any
// server-side state. Protected routes accept either form; a background
// reaper evicts sessions idle beyond a threshold.
//
// Request gate order is fixed: rate limiter, input validation, bearer token
// authentication, handler. Login failures collapse into one generic response
// regardless of cause, so callers cannot distinguish a wrong password from an
// upstream outage.
//
// Sessions live in process memory only and are lost on restart.
package odoogate
