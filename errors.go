package authgate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoToken is returned when a request carries no bearer token.
	ErrNoToken = errors.New("no bearer token")
	// ErrInvalidToken covers bad signature, expiry, wrong purpose, and
	// malformed tokens presented to the authenticator.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for tokens found in the revocation registry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrInvalidCredentials is returned on a failed email/password check.
	// It deliberately does not distinguish unknown users from bad passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken is returned when a refresh token fails
	// verification, is revoked, or its session no longer exists.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrUserExists is returned when registration hits a duplicate email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by CredentialStore implementations.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserInactive is returned when the token subject is missing or disabled.
	ErrUserInactive = errors.New("user inactive")
	// ErrAccountLocked is returned while lockedUntil is in the future.
	ErrAccountLocked = errors.New("account locked")
	// ErrPasswordChangeRequired is returned when the account is flagged
	// mustChangePassword; only the password-change flow may proceed.
	ErrPasswordChangeRequired = errors.New("password change required")
	// ErrTooManyAttempts is returned when the login throttle rejects a
	// source address.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrTwoFactorRequired signals that a pending token was issued and the
	// client must complete the two-factor handshake.
	ErrTwoFactorRequired = errors.New("two-factor verification required")
	// ErrTwoFactorFailed is returned for a bad one-time or backup code.
	ErrTwoFactorFailed = errors.New("two-factor verification failed")
	// ErrTwoFactorNotEnabled is returned when a two-factor operation targets
	// an account without two-factor configured.
	ErrTwoFactorNotEnabled = errors.New("two-factor not enabled")
	// ErrInsufficientPermissions is returned by role gates.
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	// ErrResourceAccessDenied is returned by ownership gates.
	ErrResourceAccessDenied = errors.New("resource access denied")
	// ErrPasswordPolicy is returned when a new password fails hashing policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change repeats the
	// current password.
	ErrPasswordReuse = errors.New("new password must differ from current password")
	// ErrSessionNotFound is returned when a session lookup misses.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEngineNotReady is returned from an engine that was not built.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AccountLockedError carries the lockout deadline alongside
// [ErrAccountLocked] so callers can surface a Retry-After.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RateLimitedError carries the retry delay alongside [ErrTooManyAttempts].
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrTooManyAttempts
}
