package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/token"
)

// Authenticate validates a bearer access token and returns the
// authenticated identity. Every denial emits an audit event; the
// denial paths are a contract, not best-effort logging.
//
// The identity is rebuilt from the current user record on every call,
// so a role change or deactivation takes effect on the next request
// rather than at token expiry.
func (e *Engine) Authenticate(ctx context.Context, bearer string) (*AuthenticatedUser, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	if bearer == "" {
		return nil, e.denyAuth(ctx, "", "", ErrNoToken)
	}

	claims, err := e.tokens.Verify(bearer, token.PurposeAccess)
	if err != nil {
		return nil, e.denyAuth(ctx, "", "", mapTokenError(err))
	}

	revoked, err := e.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, e.denyAuth(ctx, claims.Subject, claims.SessionID, ErrTokenRevoked)
	}

	if claims.SessionID != "" {
		alive, err := e.sessions.Has(ctx, claims.Subject, claims.SessionID)
		if err != nil {
			return nil, err
		}
		if !alive {
			return nil, e.denyAuth(ctx, claims.Subject, claims.SessionID, ErrTokenRevoked)
		}
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.denyAuth(ctx, claims.Subject, claims.SessionID, ErrUserInactive)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, e.denyAuth(ctx, user.ID, claims.SessionID, ErrUserInactive)
	}
	if user.Locked(time.Now()) {
		return nil, e.denyAuth(ctx, user.ID, claims.SessionID, &AccountLockedError{Until: *user.LockedUntil})
	}
	if user.MustChangePassword {
		return nil, e.denyAuth(ctx, user.ID, claims.SessionID, ErrPasswordChangeRequired)
	}

	e.metricInc(MetricAuthSuccess)
	e.emitAudit(ctx, auditEventAuthSuccess, true, user.ID, claims.SessionID, nil, nil)

	return &AuthenticatedUser{ID: user.ID, Email: user.Email, Role: user.Role}, nil
}

// OptionalAuthenticate is Authenticate for endpoints that serve both
// anonymous and signed-in callers. Denials degrade to a nil identity;
// only infrastructure failures surface as errors.
func (e *Engine) OptionalAuthenticate(ctx context.Context, bearer string) (*AuthenticatedUser, error) {
	user, err := e.Authenticate(ctx, bearer)
	if err == nil {
		return user, nil
	}
	switch {
	case errors.Is(err, ErrNoToken),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrUserInactive),
		errors.Is(err, ErrAccountLocked),
		errors.Is(err, ErrPasswordChangeRequired):
		return nil, nil
	}
	return nil, err
}

// RequireRole passes when user holds any of the listed roles.
// Superadmins pass every role gate.
func (e *Engine) RequireRole(ctx context.Context, user *AuthenticatedUser, roles ...Role) error {
	if user == nil {
		return ErrNoToken
	}
	if user.Role == RoleSuperAdmin {
		return nil
	}
	for _, r := range roles {
		if user.Role == r {
			return nil
		}
	}

	e.metricInc(MetricAuthDenied)
	e.emitAudit(ctx, auditEventRoleDenied, false, user.ID, "", ErrInsufficientPermissions, func() map[string]string {
		return map[string]string{"role": string(user.Role)}
	})
	return ErrInsufficientPermissions
}

// RequireResourceOwnership passes when user owns the resource or holds
// an elevated role.
func (e *Engine) RequireResourceOwnership(ctx context.Context, user *AuthenticatedUser, ownerID string) error {
	if user == nil {
		return ErrNoToken
	}
	if ownerID != "" && user.ID == ownerID {
		return nil
	}
	if user.Role.Elevated() {
		return nil
	}

	e.metricInc(MetricAuthDenied)
	e.emitAudit(ctx, auditEventOwnershipDenied, false, user.ID, "", ErrResourceAccessDenied, nil)
	return ErrResourceAccessDenied
}

func (e *Engine) denyAuth(ctx context.Context, actorID, sessionID string, err error) error {
	e.metricInc(MetricAuthDenied)
	e.emitAudit(ctx, auditEventAuthDenied, false, actorID, sessionID, err, nil)
	return err
}

// mapTokenError collapses verifier errors into the coarse sentinel the
// caller sees. The precise reason still reaches the audit trail via
// the wrapped cause.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrWrongPurpose),
		errors.Is(err, token.ErrMalformed):
		return ErrInvalidToken
	default:
		return err
	}
}
