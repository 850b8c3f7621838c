package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/middleware"
)

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func bearer(r *http.Request) string {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if !strings.HasPrefix(v, prefix) {
		return ""
	}
	return v[len(prefix):]
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "BAD_REQUEST", Message: "malformed body"}})
		return
	}

	ctx := middleware.Annotate(r)
	user, result, err := s.engine.Register(ctx, req.Email, req.Password, authgate.RoleUser)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":            user.ID,
		"email":         user.Email,
		"role":          string(user.Role),
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "BAD_REQUEST", Message: "malformed body"}})
		return
	}

	ctx := middleware.Annotate(r)
	result, err := s.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if result.Requires2FA {
		writeJSON(w, http.StatusOK, map[string]any{
			"requires_2fa":  true,
			"pending_token": result.PendingToken,
		})
		return
	}
	writeJSON(w, http.StatusOK, result.TokenPair)
}

func (s *Server) handleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PendingToken string `json:"pending_token"`
		Code         string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "BAD_REQUEST", Message: "malformed body"}})
		return
	}

	ctx := middleware.Annotate(r)
	result, err := s.engine.VerifyTwoFactor(ctx, req.PendingToken, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result.TokenPair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "BAD_REQUEST", Message: "malformed body"}})
		return
	}

	ctx := middleware.Annotate(r)
	pair, err := s.engine.Refresh(ctx, req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := middleware.Annotate(r)
	if err := s.engine.Logout(ctx, bearer(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "BAD_REQUEST", Message: "malformed body"}})
		return
	}

	ctx := middleware.Annotate(r)
	if err := s.engine.ChangePassword(ctx, bearer(r), req.CurrentPassword, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authgate.ErrNoToken)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    user.ID,
		"email": user.Email,
		"role":  string(user.Role),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authgate.ErrNoToken)
		return
	}

	sessions, err := s.engine.ListSessions(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, map[string]any{
			"id":           sess.ID,
			"created_at":   sess.CreatedAt,
			"last_seen_at": sess.LastSeenAt,
			"source_ip":    sess.SourceIP,
			"user_agent":   sess.UserAgent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authgate.ErrNoToken)
		return
	}

	n, err := s.engine.LogoutAll(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authgate.ErrNoToken)
		return
	}

	if err := s.engine.RevokeSession(r.Context(), user.ID, r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleEnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authgate.ErrNoToken)
		return
	}

	setup, err := s.engine.EnableTwoFactor(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":           setup.SecretBase32,
		"provisioning_uri": setup.ProvisioningURI,
		"backup_codes":     setup.BackupCodes,
	})
}

func (s *Server) handleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authgate.ErrNoToken)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{Code: "BAD_REQUEST", Message: "malformed body"}})
		return
	}

	if err := s.engine.DisableTwoFactor(r.Context(), user.ID, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, r, authgate.ErrNoToken)
		return
	}

	codes, err := s.engine.RegenerateBackupCodes(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backup_codes": codes})
}
