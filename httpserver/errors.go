package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/MrEthical07/authgate"
)

type errorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	LockedUntil string `json:"locked_until,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps engine errors onto the envelope. Infrastructure
// failures are the only 500s; they go to Sentry so an outage is never
// mistaken for an auth-rule denial.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *authgate.AccountLockedError
	if errors.As(err, &locked) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(time.Until(locked.Until))))
		writeJSON(w, http.StatusLocked, errorEnvelope{Error: errorBody{
			Code:        "ACCOUNT_LOCKED",
			Message:     "account temporarily locked",
			LockedUntil: locked.Until.UTC().Format(time.RFC3339),
		}})
		return
	}

	var limited *authgate.RateLimitedError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limited.RetryAfter)))
		writeJSON(w, http.StatusTooManyRequests, errorEnvelope{Error: errorBody{
			Code:    "RATE_LIMIT_EXCEEDED",
			Message: "too many attempts",
		}})
		return
	}

	status, code, message := classify(err)
	if status == http.StatusInternalServerError {
		sentry.CaptureException(err)
		s.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("internal error")
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, authgate.ErrUserExists):
		return http.StatusConflict, "USER_EXISTS", "email already registered"
	case errors.Is(err, authgate.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"
	case errors.Is(err, authgate.ErrTwoFactorFailed):
		return http.StatusUnauthorized, "TWO_FACTOR_FAILED", "two-factor verification failed"
	case errors.Is(err, authgate.ErrTwoFactorNotEnabled):
		return http.StatusConflict, "TWO_FACTOR_NOT_ENABLED", "two-factor is not enabled"
	case errors.Is(err, authgate.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "refresh token rejected"
	case errors.Is(err, authgate.ErrTokenRevoked):
		return http.StatusUnauthorized, "TOKEN_REVOKED", "token has been revoked"
	case errors.Is(err, authgate.ErrNoToken):
		return http.StatusUnauthorized, "NO_TOKEN", "missing bearer token"
	case errors.Is(err, authgate.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN", "token rejected"
	case errors.Is(err, authgate.ErrUserInactive):
		return http.StatusUnauthorized, "USER_INACTIVE", "account is not active"
	case errors.Is(err, authgate.ErrPasswordChangeRequired):
		return http.StatusUnauthorized, "PASSWORD_CHANGE_REQUIRED", "password change required"
	case errors.Is(err, authgate.ErrPasswordPolicy):
		return http.StatusUnprocessableEntity, "PASSWORD_POLICY", "password does not meet policy"
	case errors.Is(err, authgate.ErrPasswordReuse):
		return http.StatusUnprocessableEntity, "PASSWORD_REUSE", "new password must differ"
	case errors.Is(err, authgate.ErrInsufficientPermissions),
		errors.Is(err, authgate.ErrResourceAccessDenied):
		return http.StatusForbidden, "FORBIDDEN", "access denied"
	case errors.Is(err, authgate.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "session not found"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
