// Package storage defines the session store interface and its session record.
//
// A session is created on successful login, mutated only by authenticated
// access (last-access refresh) and by the reaper (eviction), and destroyed on
// explicit logout, idle-timeout eviction, or process exit. Sessions are never
// persisted.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/odoogate/odoogate/verifier"
)

// ErrSessionNotFound indicates the token resolves to no live session.
var ErrSessionNotFound = errors.New("session not found")

// Session is one live session record, keyed by its opaque token.
type Session struct {
	// Token is the opaque session key. Unique, generated per login,
	// never reused.
	Token string

	// Subject is the profile snapshot captured at login time. It is not
	// refreshed from upstream afterward.
	Subject verifier.Subject

	// Handle is the upstream client bound to the verified credentials,
	// owned by this session. The store closes it on delete and sweep.
	Handle verifier.Client

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// LastAccessAt updates on each successful authenticated access.
	LastAccessAt time.Time
}

// SessionStore stores live sessions keyed by opaque token.
// Implementations must be safe for concurrent use.
type SessionStore interface {
	// Put inserts a session. Tokens are unique by construction, but
	// writing an existing key must be safe: last write wins.
	Put(ctx context.Context, session *Session) error

	// Get returns the session for the token, or ErrSessionNotFound.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes the session and closes its handle. Deleting an
	// unknown token is not an error.
	Delete(ctx context.Context, token string) error

	// Touch sets the session's last-access time to now.
	// Returns ErrSessionNotFound for an unknown token.
	Touch(ctx context.Context, token string, now time.Time) error

	// Sweep evicts every session idle strictly longer than the threshold
	// (a session idle exactly the threshold survives) and closes the
	// evicted handles. Returns the number of evicted sessions.
	Sweep(ctx context.Context, now time.Time, idleThreshold time.Duration) (int, error)

	// Count returns the number of live sessions.
	Count() int64
}
