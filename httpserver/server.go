// Package httpserver exposes the engine over HTTP with a stable JSON
// error envelope. Status codes and machine-readable error codes carry
// the taxonomy: 401 for retryable input problems, 423 for lockout, 429
// for throttling, 403 for authorization, 500 for infrastructure.
package httpserver

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/middleware"
)

// Server wires the auth routes onto a ServeMux.
type Server struct {
	engine *authgate.Engine
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New builds a Server over engine.
func New(engine *authgate.Engine, logger zerolog.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	requireAuth := s.requireAuth

	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /auth/verify-2fa", s.handleVerifyTwoFactor)
	s.mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)
	s.mux.HandleFunc("POST /auth/password", s.handleChangePassword)

	s.mux.Handle("GET /auth/me", requireAuth(http.HandlerFunc(s.handleMe)))
	s.mux.Handle("GET /auth/sessions", requireAuth(http.HandlerFunc(s.handleListSessions)))
	s.mux.Handle("DELETE /auth/sessions", requireAuth(http.HandlerFunc(s.handleLogoutAll)))
	s.mux.Handle("DELETE /auth/sessions/{id}", requireAuth(http.HandlerFunc(s.handleRevokeSession)))

	s.mux.Handle("POST /auth/2fa/enable", requireAuth(http.HandlerFunc(s.handleEnableTwoFactor)))
	s.mux.Handle("POST /auth/2fa/disable", requireAuth(http.HandlerFunc(s.handleDisableTwoFactor)))
	s.mux.Handle("POST /auth/2fa/backup-codes", requireAuth(http.HandlerFunc(s.handleRegenerateBackupCodes)))
}

// requireAuth is [middleware.RequireAuth] with this server's JSON
// error envelope instead of the middleware's plain-text denials.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.Annotate(r)

		user, err := s.engine.Authenticate(ctx, bearer(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx = middleware.WithIdentity(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
