package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/token"
	"github.com/MrEthical07/authgate/twofactor"
)

// VerifyTwoFactor completes a login that [Engine.Login] left pending.
// It accepts either a TOTP code or a backup code; backup codes are
// single-use. The pending token is revoked on success so it cannot
// mint a second session.
func (e *Engine) VerifyTwoFactor(ctx context.Context, pendingToken, code string) (*LoginResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(pendingToken, token.PurposePending2FA)
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, "", "", ErrInvalidToken, nil)
		return nil, ErrInvalidToken
	}

	revoked, err := e.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, claims.Subject, "", ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	user, err := e.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.Locked(time.Now()) {
		return nil, &AccountLockedError{Until: *user.LockedUntil}
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	matched, usedBackup, err := e.matchSecondFactor(ctx, user, code)
	if err != nil {
		return nil, err
	}
	if !matched {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, "", ErrTwoFactorFailed, nil)
		// A store outage must surface as such, not as a failed code.
		if failErr := e.recordLoginFailure(ctx, user); failErr != nil && !errors.Is(failErr, ErrInvalidCredentials) {
			return nil, failErr
		}
		return nil, ErrTwoFactorFailed
	}

	// One pending token, one session.
	if err := e.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	if user.FailedLoginAttempts > 0 {
		if err := e.users.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	if usedBackup {
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, user.ID, "", nil, nil)
	}
	e.metricInc(MetricTwoFactorSuccess)

	return e.finishLogin(ctx, user, auditEventTwoFactorSuccess)
}

// matchSecondFactor tries the code as a TOTP first, then as a backup
// code. Codes of the configured TOTP digit length never reach the
// backup path, so a guessed 6-digit string cannot burn a backup code.
func (e *Engine) matchSecondFactor(ctx context.Context, user User, code string) (matched, usedBackup bool, err error) {
	ok, err := e.verifyTOTP(ctx, user, code)
	if err != nil {
		return false, false, err
	}
	if ok {
		return true, false, nil
	}
	if len(code) == e.config.TwoFactor.Digits {
		return false, false, nil
	}

	consumed, err := e.users.ConsumeBackupCode(ctx, user.ID, twofactor.HashBackupCode(code))
	if err != nil {
		return false, false, err
	}
	return consumed, consumed, nil
}

// verifyTOTP checks the code and claims the time step it matched. A
// code that already opened a session is rejected even while the skew
// window would still accept it.
func (e *Engine) verifyTOTP(ctx context.Context, user User, code string) (bool, error) {
	ok, counter, err := e.totp.VerifyCode(user.TwoFactorSecret, code, time.Now())
	if err != nil || !ok {
		return false, err
	}

	tf := e.config.TwoFactor
	ttl := time.Duration(2*tf.Skew+2) * time.Duration(tf.Period) * time.Second
	return e.otpReplay.Claim(ctx, user.ID, counter, ttl)
}

// EnableTwoFactor provisions a TOTP secret and backup codes for an
// account. The caller must prove possession of the authenticator by
// completing a login before the flag matters, but the secret is
// persisted immediately; re-enabling replaces it.
func (e *Engine) EnableTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	codes, hashes, err := twofactor.GenerateBackupCodes(
		e.config.TwoFactor.BackupCodeCount,
		e.config.TwoFactor.BackupCodeLength,
	)
	if err != nil {
		return nil, err
	}

	if err := e.users.EnableTwoFactor(ctx, user.ID, secret); err != nil {
		return nil, err
	}
	if err := e.users.ReplaceBackupCodes(ctx, user.ID, hashes); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, user.ID, "", nil, nil)

	return &TwoFactorSetup{
		SecretBase32:    secretBase32,
		ProvisioningURI: e.totp.ProvisionURI(secretBase32, user.Email),
		BackupCodes:     codes,
	}, nil
}

// DisableTwoFactor turns the second factor off. It demands a currently
// valid TOTP code so a hijacked session cannot silently weaken the
// account.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, code string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	ok, _, err := e.totp.VerifyCode(user.TwoFactorSecret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, "", ErrTwoFactorFailed, nil)
		return ErrTwoFactorFailed
	}

	if err := e.users.DisableTwoFactor(ctx, user.ID); err != nil {
		return err
	}
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, user.ID, "", nil, nil)
	return nil
}

// RegenerateBackupCodes replaces the stored backup-code hashes and
// returns fresh plaintext codes. Old codes stop working immediately.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	codes, hashes, err := twofactor.GenerateBackupCodes(
		e.config.TwoFactor.BackupCodeCount,
		e.config.TwoFactor.BackupCodeLength,
	)
	if err != nil {
		return nil, err
	}
	if err := e.users.ReplaceBackupCodes(ctx, user.ID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}
