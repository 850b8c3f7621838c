package authgate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventAccountLocked         = "account_locked"
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventTokenRevoked          = "token_revoked"
	auditEventLogoutSession         = "logout_session"
	auditEventLogoutAll             = "logout_all"
	auditEventSessionRevoked        = "session_revoked"
	auditEventAuthSuccess           = "auth_success"
	auditEventAuthDenied            = "auth_denied"
	auditEventRoleDenied            = "role_denied"
	auditEventOwnershipDenied       = "ownership_denied"
	auditEventTwoFactorRequired     = "two_factor_required"
	auditEventTwoFactorSuccess      = "two_factor_success"
	auditEventTwoFactorFailure      = "two_factor_failure"
	auditEventTwoFactorEnabled      = "two_factor_enabled"
	auditEventTwoFactorDisabled     = "two_factor_disabled"
	auditEventBackupCodeUsed        = "backup_code_used"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
)

// AuditErrorCode is the machine-readable denial reason recorded on
// audit events.
type AuditErrorCode string

const (
	auditErrNoToken             AuditErrorCode = "no_token"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrTokenRevoked        AuditErrorCode = "token_revoked"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrInvalidRefresh      AuditErrorCode = "invalid_refresh_token"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrUserInactive        AuditErrorCode = "account_inactive"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrPasswordChange      AuditErrorCode = "password_change_required"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrTwoFactorRequired   AuditErrorCode = "two_factor_required"
	auditErrTwoFactorFailed     AuditErrorCode = "two_factor_failed"
	auditErrTwoFactorNotEnabled AuditErrorCode = "two_factor_not_enabled"
	auditErrInsufficientRole    AuditErrorCode = "insufficient_role"
	auditErrNotOwner            AuditErrorCode = "not_owner"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	actorID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ActorID:   actorID,
		SessionID: sessionID,
		SourceIP:  sourceAddressFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNoToken):
		return auditErrNoToken
	case errors.Is(err, ErrTokenRevoked):
		return auditErrTokenRevoked
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidRefreshToken):
		return auditErrInvalidRefresh
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrUserInactive):
		return auditErrUserInactive
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordChangeRequired):
		return auditErrPasswordChange
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrTwoFactorRequired):
		return auditErrTwoFactorRequired
	case errors.Is(err, ErrTwoFactorFailed):
		return auditErrTwoFactorFailed
	case errors.Is(err, ErrTwoFactorNotEnabled):
		return auditErrTwoFactorNotEnabled
	case errors.Is(err, ErrInsufficientPermissions):
		return auditErrInsufficientRole
	case errors.Is(err, ErrResourceAccessDenied):
		return auditErrNotOwner
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserExists):
		return auditErrDuplicate
	default:
		return auditErrInternal
	}
}
