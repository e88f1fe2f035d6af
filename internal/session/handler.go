package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// Authenticator checks credentials; implemented by user.UserService.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*entity.User, error)
}

// DraftDropper forgets the edit draft held by a session.
type DraftDropper interface {
	Drop(sessionID string)
}

// Handler exposes login, logout and the current identity.
type Handler struct {
	svc    *Service
	users  Authenticator
	drafts DraftDropper
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, users Authenticator, drafts DraftDropper, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, users: users, drafts: drafts, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token and who it belongs to.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Identity  entity.AuthView `json:"identity"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "username", req.Username, "err", err)
		h.writeError(w, err)
		return
	}
	tok, err := h.svc.Issue(u.View())
	if err != nil {
		h.logger.Errorw("issue session", "err", err)
		h.writeError(w, err)
		return
	}
	h.logger.Infow("login", "user_id", u.ID, "session", tok.ID)
	h.writeJSON(w, http.StatusOK, LoginResponse{Token: tok.Value, ExpiresAt: tok.ExpiresAt, Identity: u.View()})
}

// Logout revokes the caller's session and discards its edit draft.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, apperr.ErrAuthFailed)
		return
	}
	if err := h.svc.Revoke(r.Context(), p.Claims); err != nil {
		h.logger.Warnw("revoke session", "session", p.SessionID, "err", err)
		h.writeError(w, err)
		return
	}
	if h.drafts != nil {
		h.drafts.Drop(p.SessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, apperr.ErrAuthFailed)
		return
	}
	h.writeJSON(w, http.StatusOK, p.AuthView)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := http.StatusText(status)
	if status == http.StatusUnauthorized {
		msg = "invalid credentials"
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
