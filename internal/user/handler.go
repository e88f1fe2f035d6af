package user

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/access"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
)

// Handler exposes HTTP endpoints for identity management. Routes are
// mounted behind the ManageIdentities gate.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// CreateRequest request body for the create endpoint.
type CreateRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     entity.Role `json:"role"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]entity.AuthView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid create payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.Create(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.logger.Debugw("create identity failed", "username", req.Username, "err", err)
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, u.View())
}

// Update applies a partial credentials change. Demoting the last
// administrator is refused here; UpdateCredentials refuses renames of the
// bootstrap account.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req CredentialsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if req.Role != nil {
		target, err := h.svc.Get(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		admins, err := h.svc.CountAdmins(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		if err := access.CheckRoleChange(target, *req.Role, admins); err != nil {
			h.writeError(w, err)
			return
		}
	}
	u, err := h.svc.UpdateCredentials(r.Context(), id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, u.View())
}

// Delete refuses the bootstrap admin and the last administrator.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	target, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	admins, err := h.svc.CountAdmins(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := access.CheckDelete(target, admins); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("identity request failed", "err", err)
		h.writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
