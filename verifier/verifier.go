// Package verifier defines the interface to the upstream credential
// verification system. The gateway never checks passwords itself: it hands
// credentials to a Verifier and receives back a Client bound to the verified
// identity, which is then owned by the session and used for follow-on calls
// on the subject's behalf.
package verifier

import (
	"context"
	"errors"
)

// Sentinel errors returned by Verifier implementations.
var (
	// ErrInvalidCredentials indicates the upstream rejected the
	// username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRecordNotFound indicates a Read found no record for the subject.
	ErrRecordNotFound = errors.New("record not found")
)

// Subject is the authenticated principal's profile, captured once at login
// time and never refreshed from upstream afterward.
type Subject struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Login string `json:"login"`
}

// Verifier verifies credentials against the upstream system.
// Implementations must be safe for concurrent use.
type Verifier interface {
	// Name returns the verifier name (e.g. "odoo", "mock").
	Name() string

	// Authenticate verifies the credentials and returns a Client bound to
	// the verified identity. Returns ErrInvalidCredentials (possibly
	// wrapped) when the upstream rejects the pair; any other error means
	// the upstream could not be consulted.
	Authenticate(ctx context.Context, username, password string) (Client, error)

	// HealthCheck verifies the upstream system is reachable.
	HealthCheck(ctx context.Context) error
}

// Client is a live handle bound to one subject's verified credentials.
// A Client is owned by exactly one session and is used for follow-on calls
// to the upstream system on behalf of that subject.
type Client interface {
	// UID returns the upstream subject identifier.
	UID() int64

	// Read fetches the named fields of one record of the given model.
	// Returns ErrRecordNotFound when the record does not exist.
	Read(ctx context.Context, model string, id int64, fields []string) (map[string]any, error)

	// SearchCount counts the records of the given model matching the
	// domain filter.
	SearchCount(ctx context.Context, model string, domain []any) (int, error)

	// Close releases the handle. Implementations with no server-side
	// state may make this a no-op.
	Close() error
}
