package odoogate

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/odoogate/odoogate/storage"
	"github.com/odoogate/odoogate/storage/memory"
	"github.com/odoogate/odoogate/token"
	"github.com/odoogate/odoogate/verifier"
	"github.com/odoogate/odoogate/verifier/mock"
)

var testSubject = verifier.Subject{ID: 7, Name: "U", Email: "u@x.com", Login: "u@x.com"}

type testEnv struct {
	server   *Server
	verifier *mock.Verifier
	sessions *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mv := mock.New()
	mv.AddUser("u@x.com", "p", testSubject)

	sessions := memory.New()

	issuer, err := token.NewIssuer([]byte("test-secret-key"))
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	cfg := &Config{
		Environment:   EnvTest,
		VerifyTimeout: 2 * time.Second,
	}

	server, err := NewServer(mv, sessions, issuer, cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	return &testEnv{server: server, verifier: mv, sessions: sessions}
}

func (e *testEnv) login(t *testing.T) *LoginResult {
	t.Helper()
	result, apiErr := e.server.Login(context.Background(), "u@x.com", "p", "192.0.2.1")
	if apiErr != nil {
		t.Fatalf("Login() error = %v", apiErr)
	}
	return result
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	result := env.login(t)

	if result.Token == "" || result.SignedToken == "" {
		t.Fatal("Login() returned an empty token")
	}
	if result.Subject != testSubject {
		t.Errorf("Subject = %+v, want %+v", result.Subject, testSubject)
	}
	if result.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", result.ExpiresIn)
	}

	session, err := env.sessions.Get(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.Subject != testSubject {
		t.Errorf("stored Subject = %+v, want %+v", session.Subject, testSubject)
	}
	if session.Handle == nil {
		t.Error("stored session should own the verifier handle")
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	// Wrong password, unreachable upstream, and verifier timeout must all
	// produce the same error, byte for byte.
	wrongPassword := func(env *testEnv) {}
	upstreamDown := func(env *testEnv) { env.verifier.Err = errors.New("connection refused") }
	timeout := func(env *testEnv) {
		env.verifier.Delay = 200 * time.Millisecond
		env.server.config.VerifyTimeout = 20 * time.Millisecond
	}

	var responses []*APIError
	for name, setup := range map[string]func(*testEnv){
		"wrong password": wrongPassword,
		"upstream down":  upstreamDown,
		"timeout":        timeout,
	} {
		env := newTestEnv(t)
		setup(env)

		_, apiErr := env.server.Login(context.Background(), "u@x.com", "wrong", "192.0.2.1")
		if apiErr == nil {
			t.Fatalf("%s: Login() should fail", name)
		}
		if apiErr.Code != ErrorCodeAuthFailed {
			t.Errorf("%s: Code = %q, want %q", name, apiErr.Code, ErrorCodeAuthFailed)
		}
		responses = append(responses, apiErr)
	}

	for i := 1; i < len(responses); i++ {
		if *responses[i] != *responses[0] {
			t.Errorf("failure responses differ: %+v vs %+v", responses[i], responses[0])
		}
	}
}

func TestLogin_ProfileFetchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.ReadErr = errors.New("read failed")

	_, apiErr := env.server.Login(context.Background(), "u@x.com", "p", "192.0.2.1")
	if apiErr == nil {
		t.Fatal("Login() should fail")
	}
	if apiErr.Code != ErrorCodeUpstreamFailure {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrorCodeUpstreamFailure)
	}
	if env.sessions.Count() != 0 {
		t.Error("no session should be stored on profile fetch failure")
	}
}

func TestLogin_TimeoutDiscardsLateResult(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.Delay = 100 * time.Millisecond
	env.server.config.VerifyTimeout = 10 * time.Millisecond

	_, apiErr := env.server.Login(context.Background(), "u@x.com", "p", "192.0.2.1")
	if apiErr == nil || apiErr.Code != ErrorCodeAuthFailed {
		t.Fatalf("Login() error = %v, want AUTH_FAILED", apiErr)
	}

	// The verifier eventually succeeds, but the late result must be
	// discarded, never stored.
	time.Sleep(200 * time.Millisecond)
	if env.sessions.Count() != 0 {
		t.Error("late verifier result must not create a session")
	}
}

func TestAuthenticate_SessionToken(t *testing.T) {
	env := newTestEnv(t)
	result := env.login(t)

	subject, session, apiErr := env.server.Authenticate(context.Background(), result.Token, "192.0.2.1")
	if apiErr != nil {
		t.Fatalf("Authenticate() error = %v", apiErr)
	}
	if subject != testSubject {
		t.Errorf("Subject = %+v, want %+v", subject, testSubject)
	}
	if session == nil {
		t.Fatal("session token should resolve to a live session")
	}
}

func TestAuthenticate_RefreshesLastAccess(t *testing.T) {
	env := newTestEnv(t)
	result := env.login(t)

	created := time.Now()
	later := created.Add(30 * time.Minute)
	env.server.now = func() time.Time { return later }

	if _, _, apiErr := env.server.Authenticate(context.Background(), result.Token, "192.0.2.1"); apiErr != nil {
		t.Fatalf("Authenticate() error = %v", apiErr)
	}

	session, err := env.sessions.Get(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !session.LastAccessAt.Equal(later) {
		t.Errorf("LastAccessAt = %v, want %v", session.LastAccessAt, later)
	}
}

func TestAuthenticate_SignedToken(t *testing.T) {
	env := newTestEnv(t)
	result := env.login(t)

	// Destroy the session so only the signed form can resolve.
	env.server.Logout(context.Background(), result.Token, "192.0.2.1")

	subject, session, apiErr := env.server.Authenticate(context.Background(), result.SignedToken, "192.0.2.1")
	if apiErr != nil {
		t.Fatalf("Authenticate() error = %v", apiErr)
	}
	if session != nil {
		t.Error("signed token must not resolve to a session")
	}
	if subject.ID != testSubject.ID || subject.Email != testSubject.Email {
		t.Errorf("Subject = %+v, want id=%d email=%q", subject, testSubject.ID, testSubject.Email)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	_, _, apiErr := env.server.Authenticate(context.Background(), "", "192.0.2.1")
	if apiErr == nil || apiErr.Code != ErrorCodeMissingToken {
		t.Errorf("Authenticate() error = %v, want MISSING_TOKEN", apiErr)
	}
}

func TestAuthenticate_GarbageToken(t *testing.T) {
	env := newTestEnv(t)

	_, _, apiErr := env.server.Authenticate(context.Background(), "not-a-token", "192.0.2.1")
	if apiErr == nil || apiErr.Code != ErrorCodeInvalidToken {
		t.Errorf("Authenticate() error = %v, want INVALID_TOKEN", apiErr)
	}
}

func TestAuthenticate_IdleSessionBoundary(t *testing.T) {
	env := newTestEnv(t)
	result := env.login(t)

	session, err := env.sessions.Get(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Exactly at the idle threshold: still live.
	env.server.now = func() time.Time {
		return session.LastAccessAt.Add(env.server.config.SessionIdleTimeout)
	}
	if _, _, apiErr := env.server.Authenticate(context.Background(), result.Token, "192.0.2.1"); apiErr != nil {
		t.Errorf("session exactly at the idle threshold should authenticate, got %v", apiErr)
	}
}

func TestAuthenticate_IdleSessionExpired(t *testing.T) {
	env := newTestEnv(t)
	result := env.login(t)

	session, err := env.sessions.Get(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	env.server.now = func() time.Time {
		return session.LastAccessAt.Add(env.server.config.SessionIdleTimeout + time.Nanosecond)
	}

	_, _, apiErr := env.server.Authenticate(context.Background(), result.Token, "192.0.2.1")
	if apiErr == nil || apiErr.Code != ErrorCodeTokenExpired {
		t.Fatalf("Authenticate() error = %v, want TOKEN_EXPIRED", apiErr)
	}

	// The idle session is destroyed, not left behind.
	if _, err := env.sessions.Get(context.Background(), result.Token); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Error("idle session should be deleted on rejection")
	}
}

func TestLogout_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	result := env.login(t)

	session, err := env.sessions.Get(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	handle := session.Handle.(*mock.Client)

	env.server.Logout(context.Background(), result.Token, "192.0.2.1")
	env.server.Logout(context.Background(), result.Token, "192.0.2.1")
	env.server.Logout(context.Background(), "", "192.0.2.1")

	if env.sessions.Count() != 0 {
		t.Error("session should be destroyed by logout")
	}
	if !handle.Closed() {
		t.Error("logout should close the verifier handle")
	}
}

func TestDiagnostics(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.Counts["res.partner"] = 10
	env.verifier.Counts["res.users"] = 3
	env.verifier.Counts["res.company"] = 1

	result := env.login(t)
	_, session, apiErr := env.server.Authenticate(context.Background(), result.Token, "192.0.2.1")
	if apiErr != nil {
		t.Fatalf("Authenticate() error = %v", apiErr)
	}

	stats, apiErr := env.server.Diagnostics(context.Background(), session)
	if apiErr != nil {
		t.Fatalf("Diagnostics() error = %v", apiErr)
	}
	if stats.UID != testSubject.ID {
		t.Errorf("UID = %d, want %d", stats.UID, testSubject.ID)
	}
	if stats.PartnerCount != 10 || stats.UserCount != 3 || stats.CompanyCount != 1 {
		t.Errorf("counts = %+v", stats)
	}
}

func TestDiagnostics_SubQueriesIndependentlyFailable(t *testing.T) {
	env := newTestEnv(t)
	env.verifier.CountErr = errors.New("query failed")

	result := env.login(t)
	_, session, apiErr := env.server.Authenticate(context.Background(), result.Token, "192.0.2.1")
	if apiErr != nil {
		t.Fatalf("Authenticate() error = %v", apiErr)
	}

	stats, apiErr := env.server.Diagnostics(context.Background(), session)
	if apiErr != nil {
		t.Fatalf("Diagnostics() should substitute zeros, not fail: %v", apiErr)
	}
	if stats.PartnerCount != 0 || stats.UserCount != 0 || stats.CompanyCount != 0 {
		t.Errorf("failed sub-queries should report zero, got %+v", stats)
	}
}

func TestDiagnostics_RequiresSession(t *testing.T) {
	env := newTestEnv(t)

	_, apiErr := env.server.Diagnostics(context.Background(), nil)
	if apiErr == nil || apiErr.Code != ErrorCodeInvalidToken {
		t.Errorf("Diagnostics(nil) error = %v, want INVALID_TOKEN", apiErr)
	}
}
