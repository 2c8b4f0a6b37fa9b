package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"opsdeck/internal/org/models"
	id "opsdeck/pkg/domain"
	dErrors "opsdeck/pkg/domain-errors"
)

// OrgService is the slice of the organization service the transport needs.
type OrgService interface {
	CreateOrganization(ctx context.Context, name, subdomain string) (*models.Organization, error)
	GetOrganization(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	DeactivateOrganization(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
	ReactivateOrganization(ctx context.Context, orgID id.OrgID) (*models.Organization, error)
}

// OrgHandler serves the tenant administration surface.
type OrgHandler struct {
	orgs OrgService
}

// NewOrgHandler constructs the organization handler.
func NewOrgHandler(orgs OrgService) *OrgHandler {
	return &OrgHandler{orgs: orgs}
}

// Register mounts the organization routes on an already-guarded router.
func (h *OrgHandler) Register(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{orgID}", h.handleGet)
	r.Post("/{orgID}/deactivate", h.handleDeactivate)
	r.Post("/{orgID}/reactivate", h.handleReactivate)
}

type createOrgRequest struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

func (h *OrgHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	org, err := h.orgs.CreateOrganization(r.Context(), req.Name, req.Subdomain)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (h *OrgHandler) handleList(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.ListOrganizations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (h *OrgHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	org, err := h.orgs.GetOrganization(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *OrgHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orgs.DeactivateOrganization)
}

func (h *OrgHandler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orgs.ReactivateOrganization)
}

func (h *OrgHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, id.OrgID) (*models.Organization, error),
) {
	orgID, err := orgIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	org, err := apply(r.Context(), orgID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func orgIDParam(r *http.Request) (id.OrgID, error) {
	orgID, err := id.ParseOrgID(chi.URLParam(r, "orgID"))
	if err != nil {
		return id.OrgID{}, dErrors.New(dErrors.CodeBadRequest, "invalid organization id")
	}
	return orgID, nil
}
