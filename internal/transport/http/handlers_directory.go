package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"opsdeck/internal/directory/models"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
	"opsdeck/pkg/requestcontext"
)

// DirectoryService is the slice of the directory service the transport
// needs.
type DirectoryService interface {
	CreateRole(ctx context.Context, orgID id.OrgID, name, description string) (*models.Role, error)
	GetRole(ctx context.Context, roleID id.RoleID) (*models.Role, error)
	ListRoles(ctx context.Context, orgID id.OrgID) ([]*models.Role, error)
	SetRolePermissions(ctx context.Context, roleID id.RoleID, keys []string) error

	CreateStaffProfile(ctx context.Context, userID id.UserID, orgID id.OrgID, roleID id.RoleID, fullName string) (*models.StaffProfile, error)
	ListStaffProfiles(ctx context.Context, orgID id.OrgID) ([]*models.StaffProfile, error)
	AssignRole(ctx context.Context, userID id.UserID, orgID id.OrgID, roleID id.RoleID) (*models.StaffProfile, error)
	RemoveStaffProfile(ctx context.Context, staffID id.StaffID) error
}

// DirectoryHandler serves role and staff management for the request's
// tenant. The organization always comes from the resolved tenant context,
// never from the request body, so one tenant cannot manage another's staff.
type DirectoryHandler struct {
	directory DirectoryService
}

// NewDirectoryHandler constructs the directory handler.
func NewDirectoryHandler(directory DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

// RegisterRoles mounts role management routes on an already-guarded router.
func (h *DirectoryHandler) RegisterRoles(r chi.Router) {
	r.Post("/", h.handleCreateRole)
	r.Get("/", h.handleListRoles)
	r.Get("/{roleID}", h.handleGetRole)
	r.Put("/{roleID}/permissions", h.handleSetPermissions)
}

// RegisterStaff mounts staff management routes on an already-guarded router.
func (h *DirectoryHandler) RegisterStaff(r chi.Router) {
	r.Post("/", h.handleCreateStaff)
	r.Get("/", h.handleListStaff)
	r.Put("/{userID}/role", h.handleAssignRole)
	r.Delete("/{staffID}", h.handleRemoveStaff)
}

func tenantOrgID(r *http.Request) (id.OrgID, error) {
	orgID := requestcontext.OrgID(r.Context())
	if orgID.IsZero() {
		return id.OrgID{}, dErrors.New(dErrors.CodeBadRequest, "no tenant resolved for this host")
	}
	return orgID, nil
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *DirectoryHandler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	orgID, err := tenantOrgID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createRoleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	role, err := h.directory.CreateRole(r.Context(), orgID, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *DirectoryHandler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	orgID, err := tenantOrgID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	roles, err := h.directory.ListRoles(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *DirectoryHandler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	roleID, err := id.ParseRoleID(chi.URLParam(r, "roleID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid role id"))
		return
	}
	role, err := h.directory.GetRole(r.Context(), roleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *DirectoryHandler) handleSetPermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := id.ParseRoleID(chi.URLParam(r, "roleID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid role id"))
		return
	}
	var req setPermissionsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createStaffRequest struct {
	UserID   string `json:"user_id"`
	RoleID   string `json:"role_id"`
	FullName string `json:"full_name"`
}

func (h *DirectoryHandler) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	orgID, err := tenantOrgID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createStaffRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	var roleID id.RoleID
	if req.RoleID != "" {
		if roleID, err = id.ParseRoleID(req.RoleID); err != nil {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid role id"))
			return
		}
	}
	profile, err := h.directory.CreateStaffProfile(r.Context(), userID, orgID, roleID, req.FullName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (h *DirectoryHandler) handleListStaff(w http.ResponseWriter, r *http.Request) {
	orgID, err := tenantOrgID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	profiles, err := h.directory.ListStaffProfiles(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": profiles})
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (h *DirectoryHandler) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	orgID, err := tenantOrgID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	var req assignRoleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	roleID, err := id.ParseRoleID(req.RoleID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid role id"))
		return
	}
	profile, err := h.directory.AssignRole(r.Context(), userID, orgID, roleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *DirectoryHandler) handleRemoveStaff(w http.ResponseWriter, r *http.Request) {
	staffID, err := parseStaffID(chi.URLParam(r, "staffID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.directory.RemoveStaffProfile(r.Context(), staffID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseStaffID(raw string) (id.StaffID, error) {
	staffID, err := id.ParseStaffID(raw)
	if err != nil {
		return id.StaffID{}, dErrors.New(dErrors.CodeBadRequest, "invalid staff id")
	}
	return staffID, nil
}
