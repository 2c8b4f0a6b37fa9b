package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"opsdeck/internal/auth/cookies"
	"opsdeck/internal/auth/models"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/requestcontext"
)

// AuthService is the slice of the auth service the transport needs.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*models.User, []cookies.Op, error)
	Logout(ctx context.Context, creds cookies.Credentials) []cookies.Op
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
}

// AuthHandler serves login, logout and the current-user endpoint.
type AuthHandler struct {
	auth   AuthService
	policy cookies.Policy
}

// NewAuthHandler constructs the auth handler.
func NewAuthHandler(auth AuthService, policy cookies.Policy) *AuthHandler {
	return &AuthHandler{auth: auth, policy: policy}
}

// Register mounts the auth routes.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/api/auth/login", h.handleLogin)
	r.Post("/api/auth/logout", h.handleLogout)
	r.Get("/api/auth/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "email and password are required"))
		return
	}

	user, ops, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	cookies.Apply(w, ops, h.policy)
	writeJSON(w, http.StatusOK, userPayload(user))
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ops := h.auth.Logout(r.Context(), cookies.Read(r))
	cookies.Apply(w, ops, h.policy)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the authenticated user. The gate leaves /api/auth/
// unprotected so login can work, which means this endpoint does its own
// anonymous check.
func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsZero() {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "not logged in"))
		return
	}
	user, err := h.auth.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load current user"))
		return
	}
	writeJSON(w, http.StatusOK, userPayload(user))
}

func userPayload(user *models.User) map[string]any {
	payload := map[string]any{
		"id":         user.ID.String(),
		"email":      user.Email,
		"superadmin": user.Superadmin,
	}
	if !user.OrgID.IsZero() {
		payload["org_id"] = user.OrgID.String()
	}
	return payload
}
