package authgate

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/throttle"
	"github.com/MrEthical07/authgate/token"
)

// Login authenticates an email/password pair.
//
// The source-address throttle runs before any credential work, so an
// attacker cannot grind passwords or farm lockouts for other users
// beyond the window budget. When the account has a second factor
// enabled the result carries a pending token instead of credentials
// and the caller must complete [Engine.VerifyTwoFactor].
func (e *Engine) Login(ctx context.Context, email, plaintext string) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	addr := sourceAddressFromContext(ctx)
	if err := e.checkThrottle(ctx, addr); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrUserInactive, nil)
		return nil, ErrUserInactive
	}

	now := time.Now()
	if user.Locked(now) {
		until := *user.LockedUntil
		if e.config.Lockout.ExtendWhileLocked {
			until = now.Add(e.config.Lockout.Duration)
			if err := e.users.SetLockout(ctx, user.ID, until); err != nil {
				return nil, err
			}
		}
		lockErr := &AccountLockedError{Until: until}
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", lockErr, nil)
		return nil, lockErr
	}

	ok, err := e.passwords.Verify(plaintext, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.recordLoginFailure(ctx, user)
	}

	if user.FailedLoginAttempts > 0 {
		if err := e.users.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	if e.limiter != nil && addr != "" {
		if err := e.limiter.Reset(ctx, addr); err != nil {
			return nil, err
		}
	}

	if user.TwoFactorEnabled {
		pending, err := e.tokens.IssuePending(token.Identity{UserID: user.ID, Email: user.Email})
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditEventTwoFactorRequired, true, user.ID, "", nil, nil)
		return &LoginResult{Requires2FA: true, PendingToken: pending}, nil
	}

	return e.finishLogin(ctx, user, auditEventLoginSuccess)
}

// checkThrottle consumes one attempt for addr. Throttle being disabled
// or the address being unknown both pass.
func (e *Engine) checkThrottle(ctx context.Context, addr string) error {
	if e.limiter == nil || addr == "" {
		return nil
	}
	retryAfter, err := e.limiter.Allow(ctx, addr)
	if errors.Is(err, throttle.ErrRateLimited) {
		rlErr := &RateLimitedError{RetryAfter: retryAfter}
		e.metricInc(MetricLoginThrottled)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", rlErr, func() map[string]string {
			return map[string]string{"retry_after_ms": strconv.FormatInt(retryAfter.Milliseconds(), 10)}
		})
		return rlErr
	}
	return err
}

// recordLoginFailure bumps the per-account failure counter and trips
// the lockout at the threshold. The increment is atomic in the store,
// so concurrent failures cannot skip the threshold.
func (e *Engine) recordLoginFailure(ctx context.Context, user User) error {
	count, err := e.users.RecordFailedLogin(ctx, user.ID)
	if err != nil {
		return err
	}

	if count >= e.config.Lockout.Threshold {
		until := time.Now().Add(e.config.Lockout.Duration)
		if err := e.users.SetLockout(ctx, user.ID, until); err != nil {
			return err
		}
		lockErr := &AccountLockedError{Until: until}
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, user.ID, "", lockErr, func() map[string]string {
			return map[string]string{"failed_attempts": strconv.Itoa(count)}
		})
		return lockErr
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"failed_attempts": strconv.Itoa(count)}
	})
	return ErrInvalidCredentials
}

// finishLogin creates the session and issues the token pair.
func (e *Engine) finishLogin(ctx context.Context, user User, auditEvent string) (*LoginResult, error) {
	sess, err := e.sessions.Create(ctx, user.ID, sourceAddressFromContext(ctx), userAgentFromContext(ctx))
	if err != nil {
		return nil, err
	}

	pair, err := e.issueTokenPair(user, sess.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEvent, true, user.ID, sess.ID, nil, nil)

	return &LoginResult{TokenPair: pair, SessionID: sess.ID}, nil
}

func (e *Engine) issueTokenPair(user User, sessionID string) (TokenPair, error) {
	id := token.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		SessionID: sessionID,
	}
	access, err := e.tokens.IssueAccess(id)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.tokens.IssueRefresh(id)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
