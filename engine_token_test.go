package authgate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/authgate"
)

func TestAuthenticateHappyPath(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)

	user, err := engine.Authenticate(context.Background(), result.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.Email != "a@example.com" || user.Role != authgate.RoleUser {
		t.Fatalf("unexpected identity: %+v", user)
	}
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	if _, err := engine.Authenticate(context.Background(), ""); !errors.Is(err, authgate.ErrNoToken) {
		t.Fatalf("empty token: %v", err)
	}
	if _, err := engine.Authenticate(context.Background(), "garbage"); !errors.Is(err, authgate.ErrInvalidToken) {
		t.Fatalf("garbage token: %v", err)
	}
}

func TestAuthenticateRejectsRefreshToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)

	if _, err := engine.Authenticate(context.Background(), result.RefreshToken); !errors.Is(err, authgate.ErrInvalidToken) {
		t.Fatalf("refresh token on access path: %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	if err := engine.Logout(ctx, result.AccessToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := engine.Authenticate(ctx, result.AccessToken); !errors.Is(err, authgate.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	// The paired refresh token dies with the session.
	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, authgate.ErrInvalidRefreshToken) {
		t.Fatalf("refresh after logout: %v", err)
	}
}

func TestAuthenticateChecksAccountState(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	user := registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	if err := store.SetActive(user.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := engine.Authenticate(ctx, result.AccessToken); !errors.Is(err, authgate.ErrUserInactive) {
		t.Fatalf("inactive: %v", err)
	}

	if err := store.SetActive(user.ID, true); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := store.SetMustChangePassword(ctx, user.ID, true); err != nil {
		t.Fatalf("SetMustChangePassword: %v", err)
	}
	if _, err := engine.Authenticate(ctx, result.AccessToken); !errors.Is(err, authgate.ErrPasswordChangeRequired) {
		t.Fatalf("must change password: %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	registerUser(t, engine, "a@example.com", testPassword)
	result := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	pair, err := engine.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken == result.RefreshToken {
		t.Fatal("refresh token not rotated")
	}
	if _, err := engine.Authenticate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("new access token: %v", err)
	}

	// The rotated-out token is now revoked, and presenting it kills the
	// session, taking the current token chain down with it.
	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, authgate.ErrInvalidRefreshToken) {
		t.Fatalf("reused refresh token: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, authgate.ErrInvalidRefreshToken) {
		t.Fatalf("chain should be dead after reuse: %v", err)
	}
}

func TestRevokeSessionInvalidatesAccess(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	user := registerUser(t, engine, "a@example.com", testPassword)
	first := loginUser(t, engine, "a@example.com", testPassword)
	second := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	sessions, err := engine.ListSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	// Registration opened a session of its own, plus the two logins.
	if len(sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(sessions))
	}

	if err := engine.RevokeSession(ctx, user.ID, first.SessionID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, err := engine.Authenticate(ctx, first.AccessToken); !errors.Is(err, authgate.ErrTokenRevoked) {
		t.Fatalf("revoked session's access token: %v", err)
	}
	if _, err := engine.Authenticate(ctx, second.AccessToken); err != nil {
		t.Fatalf("other session must survive: %v", err)
	}

	if err := engine.RevokeSession(ctx, user.ID, first.SessionID); !errors.Is(err, authgate.ErrSessionNotFound) {
		t.Fatalf("double revoke: %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	user := registerUser(t, engine, "a@example.com", testPassword)
	first := loginUser(t, engine, "a@example.com", testPassword)
	second := loginUser(t, engine, "a@example.com", testPassword)
	ctx := context.Background()

	n, err := engine.LogoutAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("removed = %d, want 3", n)
	}

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		if _, err := engine.Authenticate(ctx, token); !errors.Is(err, authgate.ErrTokenRevoked) {
			t.Fatalf("token survived LogoutAll: %v", err)
		}
	}
}
