package authgate

import (
	"context"

	"github.com/MrEthical07/authgate/session"
	"github.com/MrEthical07/authgate/token"
)

// Logout revokes the presented access token and removes its session.
// Removing the session also invalidates the paired refresh token, so
// the client holds nothing usable afterwards.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(accessToken, token.PurposeAccess)
	if err != nil {
		// An expired token has nothing left to revoke.
		return mapTokenError(err)
	}

	if err := e.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	if claims.SessionID != "" {
		if err := e.sessions.Remove(ctx, claims.Subject, claims.SessionID); err != nil {
			return err
		}
		e.metricInc(MetricSessionRemoved)
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventLogoutSession, true, claims.Subject, claims.SessionID, nil, nil)
	return nil
}

// LogoutAll removes every session of userID and returns how many were
// dropped. Outstanding access tokens stay valid until expiry only if
// they were issued without a session binding, which the engine never
// does, so this is a full sign-out.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}

	n, err := e.sessions.RemoveAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionRemoved)
	}
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return n, nil
}

// ListSessions returns the live sessions of userID.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]session.Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return e.sessions.List(ctx, userID)
}

// RevokeSession removes one session belonging to userID.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	alive, err := e.sessions.Has(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !alive {
		return ErrSessionNotFound
	}

	if err := e.sessions.Remove(ctx, userID, sessionID); err != nil {
		return err
	}
	e.metricInc(MetricSessionRemoved)
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID, sessionID, nil, nil)
	return nil
}
