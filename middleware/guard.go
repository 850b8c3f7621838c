// Package middleware provides net/http middleware that gates requests
// through an authgate Engine and stashes the authenticated identity in
// the request context.
package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authgate"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity placed by [RequireAuth] or
// [OptionalAuth]. ok is false on anonymous requests.
func IdentityFromContext(ctx context.Context) (*authgate.AuthenticatedUser, bool) {
	user, ok := ctx.Value(identityContextKey{}).(*authgate.AuthenticatedUser)
	return user, ok && user != nil
}

// WithIdentity returns ctx carrying user, for handlers that run their
// own authentication but still serve [IdentityFromContext] consumers.
func WithIdentity(ctx context.Context, user *authgate.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, identityContextKey{}, user)
}

// RequireAuth rejects requests that do not carry a valid access token.
// The denial status distinguishes locked accounts and authorization
// failures from plain 401s so clients can react without parsing text.
func RequireAuth(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := Annotate(r)

			bearer, _ := bearerToken(r.Header.Get("Authorization"))
			user, err := engine.Authenticate(ctx, bearer)
			if err != nil {
				writeDenial(w, err)
				return
			}

			ctx = context.WithValue(ctx, identityContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches an identity when a valid token is present and
// lets anonymous requests through untouched.
func OptionalAuth(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := Annotate(r)

			bearer, _ := bearerToken(r.Header.Get("Authorization"))
			user, err := engine.OptionalAuthenticate(ctx, bearer)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if user != nil {
				ctx = context.WithValue(ctx, identityContextKey{}, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole layers a role gate on top of [RequireAuth]. It must run
// after RequireAuth in the chain.
func RequireRole(engine *authgate.Engine, roles ...authgate.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := IdentityFromContext(r.Context())
			if !ok {
				writeDenial(w, authgate.ErrNoToken)
				return
			}
			if err := engine.RequireRole(r.Context(), user, roles...); err != nil {
				writeDenial(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Annotate records the caller's address and user agent on the request
// context for throttling, session metadata, and audit events.
func Annotate(r *http.Request) context.Context {
	ctx := r.Context()
	if addr := sourceAddress(r); addr != "" {
		ctx = authgate.WithSourceAddress(ctx, addr)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = authgate.WithUserAgent(ctx, ua)
	}
	return ctx
}

func sourceAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

func writeDenial(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authgate.ErrAccountLocked):
		http.Error(w, "account locked", http.StatusLocked)
	case errors.Is(err, authgate.ErrInsufficientPermissions),
		errors.Is(err, authgate.ErrResourceAccessDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, authgate.ErrPasswordChangeRequired):
		http.Error(w, "password change required", http.StatusUnauthorized)
	case errors.Is(err, authgate.ErrNoToken),
		errors.Is(err, authgate.ErrInvalidToken),
		errors.Is(err, authgate.ErrTokenRevoked),
		errors.Is(err, authgate.ErrUserInactive):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
