package authgate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authgate"
)

const testPassword = "correct horse battery"

func TestLoginSuccess(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)

	result := loginUser(t, engine, "a@example.com", testPassword)
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if result.Requires2FA {
		t.Fatal("unexpected 2FA requirement")
	}
	if result.SessionID == "" {
		t.Fatal("expected session id")
	}
}

func TestLoginEmailIsCaseInsensitive(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "A@Example.COM", testPassword)

	if _, err := engine.Login(context.Background(), "a@example.com", testPassword); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)

	_, err := engine.Login(context.Background(), "a@example.com", "wrong password")
	if !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}

	// Unknown user must be indistinguishable from a wrong password.
	_, err = engine.Login(context.Background(), "nobody@example.com", testPassword)
	if !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	user := registerUser(t, engine, "a@example.com", testPassword)

	if err := store.SetActive(user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := engine.Login(context.Background(), "a@example.com", testPassword); !errors.Is(err, authgate.ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestLockoutAfterThreshold(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *authgate.Config) {
		cfg.Lockout.Threshold = 3
		cfg.Lockout.Duration = 30 * time.Minute
	})
	registerUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "a@example.com", "wrong password"); !errors.Is(err, authgate.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	// Third failure crosses the threshold.
	_, err := engine.Login(ctx, "a@example.com", "wrong password")
	var locked *authgate.AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError, got %v", err)
	}
	if !errors.Is(err, authgate.ErrAccountLocked) {
		t.Fatal("AccountLockedError must match ErrAccountLocked")
	}
	if time.Until(locked.Until) <= 0 {
		t.Fatalf("lockedUntil in the past: %v", locked.Until)
	}

	// The correct password is rejected while locked.
	if _, err := engine.Login(ctx, "a@example.com", testPassword); !errors.Is(err, authgate.ErrAccountLocked) {
		t.Fatalf("correct password during lockout: %v", err)
	}
}

func TestLockoutExpires(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	user := registerUser(t, engine, "a@example.com", testPassword)

	past := time.Now().Add(-time.Minute)
	if err := store.SetLockout(context.Background(), user.ID, past); err != nil {
		t.Fatalf("SetLockout: %v", err)
	}

	if _, err := engine.Login(context.Background(), "a@example.com", testPassword); err != nil {
		t.Fatalf("login after lockout expiry: %v", err)
	}
}

func TestLockoutExtendWhileLocked(t *testing.T) {
	engine, store := newTestEngine(t, func(cfg *authgate.Config) {
		cfg.Lockout.Duration = time.Hour
		cfg.Lockout.ExtendWhileLocked = true
	})
	user := registerUser(t, engine, "a@example.com", testPassword)

	until := time.Now().Add(time.Minute)
	if err := store.SetLockout(context.Background(), user.ID, until); err != nil {
		t.Fatalf("SetLockout: %v", err)
	}

	_, err := engine.Login(context.Background(), "a@example.com", "wrong password")
	var locked *authgate.AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError, got %v", err)
	}
	if !locked.Until.After(until.Add(30 * time.Minute)) {
		t.Fatalf("lockout not extended: %v", locked.Until)
	}
}

func TestSuccessfulLoginResetsFailureCount(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *authgate.Config) {
		cfg.Lockout.Threshold = 3
	})
	registerUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = engine.Login(ctx, "a@example.com", "wrong password")
	}
	loginUser(t, engine, "a@example.com", testPassword)

	// The counter restarted, so two more failures stay short of the
	// threshold.
	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "a@example.com", "wrong password"); !errors.Is(err, authgate.ErrInvalidCredentials) {
			t.Fatalf("attempt %d after reset: %v", i+1, err)
		}
	}
}

func TestLoginThrottledBySourceAddress(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *authgate.Config) {
		cfg.Throttle.Enabled = true
		cfg.Throttle.MaxAttempts = 2
		cfg.Throttle.Window = time.Minute
	})
	registerUser(t, engine, "a@example.com", testPassword)
	ctx := ctxWithAddr("203.0.113.9")

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "a@example.com", "wrong password"); !errors.Is(err, authgate.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	_, err := engine.Login(ctx, "a@example.com", "wrong password")
	var limited *authgate.RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if !errors.Is(err, authgate.ErrTooManyAttempts) {
		t.Fatal("RateLimitedError must match ErrTooManyAttempts")
	}
	if limited.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v", limited.RetryAfter)
	}

	// A different address is unaffected.
	if _, err := engine.Login(ctxWithAddr("198.51.100.7"), "a@example.com", testPassword); err != nil {
		t.Fatalf("other address: %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)

	_, _, err := engine.Register(context.Background(), "a@example.com", testPassword, authgate.RoleUser)
	if !errors.Is(err, authgate.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	_, _, err := engine.Register(context.Background(), "a@example.com", "short", authgate.RoleUser)
	if !errors.Is(err, authgate.ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestRegisterStartsSession(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	user, result, err := engine.Register(ctx, "a@example.com", testPassword, authgate.RoleUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result == nil || result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected a token pair on registration")
	}
	if result.SessionID == "" {
		t.Fatal("expected a session on registration")
	}

	// The issued credentials work without a separate login.
	authUser, err := engine.Authenticate(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if authUser.ID != user.ID {
		t.Fatalf("identity = %q, want %q", authUser.ID, user.ID)
	}

	sessions, err := engine.ListSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
}
