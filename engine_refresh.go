package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/token"
)

// Refresh exchanges a refresh token for a new pair and rotates it: the
// presented token's jti goes into the revocation registry for the rest
// of its lifetime, so each refresh token is good for exactly one
// exchange. Presenting an already-rotated token drops the whole
// session, since it means the token leaked or the client is replaying.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(refreshToken, token.PurposeRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrInvalidRefreshToken, nil)
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := e.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		// Rotation reuse. Kill the session so the holder of the stolen
		// token chain loses access too.
		if claims.SessionID != "" {
			if err := e.sessions.Remove(ctx, claims.Subject, claims.SessionID); err != nil {
				return nil, err
			}
			e.metricInc(MetricSessionRemoved)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.SessionID, ErrTokenRevoked, func() map[string]string {
			return map[string]string{"reuse": "true"}
		})
		return nil, ErrInvalidRefreshToken
	}

	alive, err := e.sessions.Has(ctx, claims.Subject, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !alive {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.SessionID, ErrSessionNotFound, nil)
		return nil, ErrInvalidRefreshToken
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.Subject, claims.SessionID, ErrUserNotFound, nil)
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.IsActive {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, claims.SessionID, ErrUserInactive, nil)
		return nil, ErrUserInactive
	}
	if user.Locked(time.Now()) {
		lockErr := &AccountLockedError{Until: *user.LockedUntil}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, claims.SessionID, lockErr, nil)
		return nil, lockErr
	}

	if err := e.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	if err := e.sessions.Touch(ctx, claims.SessionID); err != nil {
		return nil, err
	}

	pair, err := e.issueTokenPair(user, claims.SessionID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, claims.SessionID, nil, nil)
	return &pair, nil
}
