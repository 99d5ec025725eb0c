package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/odoogate/odoogate/storage"
	"github.com/odoogate/odoogate/verifier"
	"github.com/odoogate/odoogate/verifier/mock"
)

func newSession(token string, lastAccess time.Time) *storage.Session {
	return &storage.Session{
		Token:        token,
		Subject:      verifier.Subject{ID: 1, Name: "U", Email: "u@x.com", Login: "u@x.com"},
		CreatedAt:    lastAccess,
		LastAccessAt: lastAccess,
	}
}

func TestPutGet(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	if err := store.Put(ctx, newSession("tok-1", now)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	session, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if session.Subject.ID != 1 {
		t.Errorf("Subject.ID = %d, want 1", session.Subject.ID)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
}

func TestPut_Validation(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Put(ctx, nil); err == nil {
		t.Error("Put(nil) should fail")
	}
	if err := store.Put(ctx, newSession("", time.Now())); err == nil {
		t.Error("Put with empty token should fail")
	}

}

func TestPut_OverwriteLastWriteWins(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	mv := mock.New()
	mv.AddUser("u@x.com", "p", verifier.Subject{ID: 1, Login: "u@x.com"})
	oldHandle, err := mv.Authenticate(ctx, "u@x.com", "p")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	first := newSession("dup", now)
	first.Handle = oldHandle
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	second := newSession("dup", now.Add(time.Minute))
	second.Subject.ID = 2
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("overwriting Put() error = %v", err)
	}

	got, err := store.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Subject.ID != 2 {
		t.Errorf("Subject.ID = %d, want the last write (2)", got.Subject.ID)
	}
	if store.Count() != 1 {
		t.Errorf("Count() = %d, want 1", store.Count())
	}
	if !oldHandle.(*mock.Client).Closed() {
		t.Error("overwrite should close the displaced session's handle")
	}
}

func TestGet_NotFound(t *testing.T) {
	store := New()

	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	if err := store.Put(ctx, newSession("tok-1", now)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	first, _ := store.Get(ctx, "tok-1")
	first.LastAccessAt = now.Add(time.Hour)

	second, _ := store.Get(ctx, "tok-1")
	if !second.LastAccessAt.Equal(now) {
		t.Error("mutating a Get() result must not affect stored state")
	}
}

func TestDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	mv := mock.New()
	mv.AddUser("u@x.com", "p", verifier.Subject{ID: 1, Login: "u@x.com"})
	handle, err := mv.Authenticate(ctx, "u@x.com", "p")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	session := newSession("tok-1", time.Now())
	session.Handle = handle
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "tok-1"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Error("session should be gone after Delete")
	}
	if !handle.(*mock.Client).Closed() {
		t.Error("Delete should close the session handle")
	}

	// Deleting an unknown token is a no-op, not an error.
	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestTouch(t *testing.T) {
	store := New()
	ctx := context.Background()
	created := time.Now()

	if err := store.Put(ctx, newSession("tok-1", created)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	later := created.Add(10 * time.Minute)
	if err := store.Touch(ctx, "tok-1", later); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	session, _ := store.Get(ctx, "tok-1")
	if !session.LastAccessAt.Equal(later) {
		t.Errorf("LastAccessAt = %v, want %v", session.LastAccessAt, later)
	}

	if err := store.Touch(ctx, "missing", later); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("Touch(missing) error = %v, want ErrSessionNotFound", err)
	}
}

func TestSweep_Boundary(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()
	threshold := time.Hour

	// Exactly at the threshold: survives.
	if err := store.Put(ctx, newSession("at-threshold", now.Add(-threshold))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// One unit past the threshold: evicted.
	if err := store.Put(ctx, newSession("past-threshold", now.Add(-threshold-time.Nanosecond))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// Fresh: survives.
	if err := store.Put(ctx, newSession("fresh", now)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	evicted, err := store.Sweep(ctx, now, threshold)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if evicted != 1 {
		t.Errorf("Sweep() evicted = %d, want 1", evicted)
	}

	if _, err := store.Get(ctx, "at-threshold"); err != nil {
		t.Error("session exactly at the threshold must survive the sweep")
	}
	if _, err := store.Get(ctx, "past-threshold"); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Error("session past the threshold must be evicted")
	}
	if store.Count() != 2 {
		t.Errorf("Count() = %d, want 2", store.Count())
	}
}

func TestSweep_ClosesHandles(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	mv := mock.New()
	mv.AddUser("u@x.com", "p", verifier.Subject{ID: 1, Login: "u@x.com"})
	handle, err := mv.Authenticate(ctx, "u@x.com", "p")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	session := newSession("stale", now.Add(-2*time.Hour))
	session.Handle = handle
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := store.Sweep(ctx, now, time.Hour); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if !handle.(*mock.Client).Closed() {
		t.Error("Sweep should close evicted session handles")
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			token := fmt.Sprintf("tok-%d", n)
			_ = store.Put(ctx, newSession(token, now))
			_, _ = store.Get(ctx, token)
			_ = store.Touch(ctx, token, now.Add(time.Minute))
			if n%2 == 0 {
				_ = store.Delete(ctx, token)
			}
		}(i)
	}
	wg.Wait()

	if store.Count() != 25 {
		t.Errorf("Count() = %d, want 25", store.Count())
	}
}
