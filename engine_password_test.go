package authgate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authgate"
)

func TestChangePassword(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)
	other := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	const newPassword = "a different password"
	if err := engine.ChangePassword(ctx, result.AccessToken, testPassword, newPassword); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// Old password is gone, new one works.
	if _, err := engine.Login(ctx, "a@example.com", testPassword); !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("old password: %v", err)
	}
	loginUser(t, engine, "a@example.com", newPassword)

	// The changing session survives; every other one is dropped.
	if _, err := engine.Authenticate(ctx, result.AccessToken); err != nil {
		t.Fatalf("own session dropped: %v", err)
	}
	if _, err := engine.Authenticate(ctx, other.AccessToken); !errors.Is(err, authgate.ErrTokenRevoked) {
		t.Fatalf("other session survived: %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)

	err := engine.ChangePassword(context.Background(), result.AccessToken, "not the password", "a different password")
	if !errors.Is(err, authgate.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordRejectsReuseAndPolicy(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	if err := engine.ChangePassword(ctx, result.AccessToken, testPassword, testPassword); !errors.Is(err, authgate.ErrPasswordReuse) {
		t.Fatalf("reuse: %v", err)
	}
	if err := engine.ChangePassword(ctx, result.AccessToken, testPassword, "short"); !errors.Is(err, authgate.ErrPasswordPolicy) {
		t.Fatalf("policy: %v", err)
	}
}

func TestChangePasswordClearsForcedFlag(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	user := registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	if err := store.SetMustChangePassword(ctx, user.ID, true); err != nil {
		t.Fatalf("SetMustChangePassword: %v", err)
	}

	// Authenticate is blocked, but the change itself goes through on
	// the same token.
	if _, err := engine.Authenticate(ctx, result.AccessToken); !errors.Is(err, authgate.ErrPasswordChangeRequired) {
		t.Fatalf("expected ErrPasswordChangeRequired, got %v", err)
	}
	if err := engine.ChangePassword(ctx, result.AccessToken, testPassword, "a different password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := engine.Authenticate(ctx, result.AccessToken); err != nil {
		t.Fatalf("flag not cleared: %v", err)
	}
}

func TestChangePasswordWithRevokedToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	if err := engine.Logout(ctx, result.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	err := engine.ChangePassword(ctx, result.AccessToken, testPassword, "a different password")
	if !errors.Is(err, authgate.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}
