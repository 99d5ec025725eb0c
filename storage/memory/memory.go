// Package memory provides an in-memory implementation of the session store.
// It is suitable for single-instance deployments; sessions do not survive a
// process restart.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/odoogate/odoogate/instrumentation"
	"github.com/odoogate/odoogate/internal/util"
	"github.com/odoogate/odoogate/storage"
)

// tokenLogLength is the number of characters to include when logging session
// tokens. Enough uniqueness for debugging without exposing the key.
const tokenLogLength = 8

// Store is an in-memory session store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*storage.Session

	// Atomic counter for metrics (lock-free access during metric collection)
	countAtomic atomic.Int64

	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Compile-time interface check
var _ storage.SessionStore = (*Store)(nil)

// New creates a new in-memory session store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*storage.Session),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetInstrumentation wires the store into metrics collection and registers
// the live-session gauge callback.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) error {
	if inst == nil {
		return nil
	}
	s.metrics = inst.Metrics()
	return inst.RegisterSessionCountCallback(s.Count)
}

// Put inserts a session. Token uniqueness means an existing key should never
// be hit, but overwriting one is safe: last write wins and the displaced
// session's handle is closed.
func (s *Store) Put(ctx context.Context, session *storage.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if session.Token == "" {
		return fmt.Errorf("session token cannot be empty")
	}

	s.mu.Lock()
	displaced := s.sessions[session.Token]
	copied := *session
	s.sessions[session.Token] = &copied
	s.countAtomic.Store(int64(len(s.sessions)))
	s.mu.Unlock()

	if displaced != nil {
		if displaced.Handle != nil && displaced.Handle != session.Handle {
			if err := displaced.Handle.Close(); err != nil {
				s.logger.Warn("Failed to close displaced session handle",
					"token_prefix", util.SafeTruncate(session.Token, tokenLogLength),
					"error", err)
			}
		}
		s.logger.Warn("Session token overwritten",
			"token_prefix", util.SafeTruncate(session.Token, tokenLogLength))
	}

	s.logger.Debug("Session stored",
		"token_prefix", util.SafeTruncate(session.Token, tokenLogLength),
		"subject_id", session.Subject.ID)

	return nil
}

// Get returns the session for the token.
func (s *Store) Get(ctx context.Context, token string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[token]
	if !exists {
		return nil, storage.ErrSessionNotFound
	}

	// Return a copy so callers cannot mutate store state without Touch.
	copied := *session
	return &copied, nil
}

// Delete removes the session and closes its upstream handle. Deleting an
// unknown token is a no-op.
func (s *Store) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	session, exists := s.sessions[token]
	if exists {
		delete(s.sessions, token)
	}
	s.countAtomic.Store(int64(len(s.sessions)))
	s.mu.Unlock()

	if !exists {
		return nil
	}

	if session.Handle != nil {
		if err := session.Handle.Close(); err != nil {
			s.logger.Warn("Failed to close session handle",
				"token_prefix", util.SafeTruncate(token, tokenLogLength),
				"error", err)
		}
	}

	s.logger.Debug("Session deleted",
		"token_prefix", util.SafeTruncate(token, tokenLogLength),
		"subject_id", session.Subject.ID)

	return nil
}

// Touch sets the session's last-access time.
func (s *Store) Touch(ctx context.Context, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[token]
	if !exists {
		return storage.ErrSessionNotFound
	}

	session.LastAccessAt = now
	return nil
}

// Sweep evicts sessions idle strictly longer than the threshold. A session
// whose idle time equals the threshold exactly is kept.
func (s *Store) Sweep(ctx context.Context, now time.Time, idleThreshold time.Duration) (int, error) {
	s.mu.Lock()

	var evicted []*storage.Session
	for token, session := range s.sessions {
		if now.Sub(session.LastAccessAt) > idleThreshold {
			evicted = append(evicted, session)
			delete(s.sessions, token)
		}
	}
	s.countAtomic.Store(int64(len(s.sessions)))
	s.mu.Unlock()

	for _, session := range evicted {
		if session.Handle != nil {
			if err := session.Handle.Close(); err != nil {
				s.logger.Warn("Failed to close evicted session handle",
					"token_prefix", util.SafeTruncate(session.Token, tokenLogLength),
					"error", err)
			}
		}
	}

	if len(evicted) > 0 {
		s.metrics.RecordSessionsEvicted(ctx, len(evicted))
		s.logger.Info("Swept idle sessions",
			"evicted", len(evicted),
			"remaining", s.countAtomic.Load())
	}

	return len(evicted), nil
}

// Count returns the number of live sessions.
func (s *Store) Count() int64 {
	return s.countAtomic.Load()
}
