package odoogate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/odoogate/odoogate/security"
	"github.com/odoogate/odoogate/storage"
)

// Reaper periodically sweeps the session store and evicts sessions idle
// beyond the threshold. It is owned by the process's top-level lifecycle,
// not by the store or any request handler, and a failing sweep is logged
// and never propagated.
type Reaper struct {
	sessions storage.SessionStore
	interval time.Duration
	idle     time.Duration
	logger   *slog.Logger
	auditor  *security.Auditor

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewReaper creates a reaper over the given store. It does not start
// sweeping until Start is called.
func NewReaper(sessions storage.SessionStore, interval, idleThreshold time.Duration, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		sessions: sessions,
		interval: interval,
		idle:     idleThreshold,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetAuditor enables audit logging of eviction sweeps.
func (r *Reaper) SetAuditor(auditor *security.Auditor) {
	r.auditor = auditor
}

// Start launches the sweep loop in its own goroutine.
func (r *Reaper) Start() {
	go r.run()
	r.logger.Info("Session reaper started",
		"interval", r.interval,
		"idle_threshold", r.idle)
}

// Stop terminates the sweep loop and waits for it to exit.
// Safe to call more than once.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
	})
}

func (r *Reaper) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweepOnce()
		case <-r.stop:
			return
		}
	}
}

// sweepOnce runs one sweep with failure containment: a panic or error in the
// sweep is logged and the loop continues.
func (r *Reaper) sweepOnce() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Panic during session sweep", "panic", rec)
		}
	}()

	evicted, err := r.sessions.Sweep(context.Background(), time.Now(), r.idle)
	if err != nil {
		r.logger.Error("Session sweep failed", "error", err)
		return
	}

	if evicted > 0 {
		r.auditor.LogSessionsEvicted(evicted)
	}
}
