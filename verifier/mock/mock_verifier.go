// Package mock provides a configurable in-memory verifier for tests.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odoogate/odoogate/verifier"
)

// User is one known account in the mock verifier.
type User struct {
	Password string
	Subject  verifier.Subject
}

// Verifier is an in-memory verifier implementation for testing.
// Configure it by populating Users, or override behavior entirely with
// AuthenticateFn. The zero value rejects every credential pair.
type Verifier struct {
	mu sync.RWMutex

	// Users maps login -> account. Checked by the default Authenticate.
	Users map[string]User

	// AuthenticateFn, when set, replaces the default authenticate logic.
	AuthenticateFn func(ctx context.Context, username, password string) (verifier.Client, error)

	// Err, when set, is returned by Authenticate and HealthCheck before
	// anything else runs. Simulates an unreachable upstream.
	Err error

	// Delay is slept (context-aware) before Authenticate answers.
	// Simulates a slow upstream for timeout tests.
	Delay time.Duration

	// Counts returned by Client.SearchCount, keyed by model.
	Counts map[string]int

	// ReadErr, when set, fails every Client.Read.
	ReadErr error

	// CountErr, when set, fails every Client.SearchCount.
	CountErr error

	authCalls atomic.Int64
}

var _ verifier.Verifier = (*Verifier)(nil)

// New creates an empty mock verifier.
func New() *Verifier {
	return &Verifier{
		Users:  make(map[string]User),
		Counts: make(map[string]int),
	}
}

// AddUser registers an account.
func (m *Verifier) AddUser(login, password string, subject verifier.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Users == nil {
		m.Users = make(map[string]User)
	}
	m.Users[login] = User{Password: password, Subject: subject}
}

// AuthCalls reports how many times Authenticate has been invoked. Tests use
// this to assert that rejected requests never reached the upstream.
func (m *Verifier) AuthCalls() int64 {
	return m.authCalls.Load()
}

func (m *Verifier) Name() string { return "mock" }

func (m *Verifier) Authenticate(ctx context.Context, username, password string) (verifier.Client, error) {
	m.authCalls.Add(1)

	if m.Err != nil {
		return nil, m.Err
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.AuthenticateFn != nil {
		return m.AuthenticateFn(ctx, username, password)
	}

	m.mu.RLock()
	user, ok := m.Users[username]
	m.mu.RUnlock()

	if !ok || user.Password != password {
		return nil, verifier.ErrInvalidCredentials
	}

	return &Client{verifier: m, subject: user.Subject}, nil
}

func (m *Verifier) HealthCheck(ctx context.Context) error {
	return m.Err
}

// Client is the mock handle returned by Authenticate.
type Client struct {
	verifier *Verifier
	subject  verifier.Subject
	closed   atomic.Bool
}

var _ verifier.Client = (*Client)(nil)

func (c *Client) UID() int64 { return c.subject.ID }

// Closed reports whether Close has been called. Tests use this to verify
// that logout and eviction release the upstream handle.
func (c *Client) Closed() bool { return c.closed.Load() }

func (c *Client) Read(ctx context.Context, model string, id int64, fields []string) (map[string]any, error) {
	if err := c.verifier.ReadErr; err != nil {
		return nil, err
	}
	if id != c.subject.ID {
		return nil, verifier.ErrRecordNotFound
	}
	return map[string]any{
		"id":    float64(c.subject.ID),
		"name":  c.subject.Name,
		"email": c.subject.Email,
		"login": c.subject.Login,
	}, nil
}

func (c *Client) SearchCount(ctx context.Context, model string, domain []any) (int, error) {
	if err := c.verifier.CountErr; err != nil {
		return 0, err
	}
	c.verifier.mu.RLock()
	defer c.verifier.mu.RUnlock()
	return c.verifier.Counts[model], nil
}

func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}
