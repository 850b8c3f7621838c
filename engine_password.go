package authgate

import (
	"context"
	"errors"

	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/token"
)

// ChangePassword rotates the account password. It authenticates the
// access token itself rather than going through [Engine.Authenticate],
// because this is the one operation an account flagged for a forced
// password change is still allowed to perform.
//
// All other sessions are dropped on success; the session behind the
// presented token survives.
func (e *Engine) ChangePassword(ctx context.Context, accessToken, current, next string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(accessToken, token.PurposeAccess)
	if err != nil {
		return mapTokenError(err)
	}
	revoked, err := e.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrTokenRevoked
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserInactive
		}
		return err
	}
	if !user.IsActive {
		return ErrUserInactive
	}

	ok, err := e.passwords.Verify(current, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.ID, claims.SessionID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if next == current {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.ID, claims.SessionID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	hash, err := e.passwords.Hash(next)
	if err != nil {
		if errors.Is(err, password.ErrWeakPassword) {
			e.metricInc(MetricPasswordChangeFailure)
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.ID, claims.SessionID, ErrPasswordPolicy, nil)
			return ErrPasswordPolicy
		}
		return err
	}

	if err := e.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	if user.MustChangePassword {
		if err := e.users.SetMustChangePassword(ctx, user.ID, false); err != nil {
			return err
		}
	}

	n, err := e.sessions.RemoveAllExcept(ctx, user.ID, claims.SessionID)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionRemoved)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, user.ID, claims.SessionID, nil, nil)
	return nil
}
