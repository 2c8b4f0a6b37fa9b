// Package httptransport is the thin HTTP layer. Handlers decode, delegate
// to services and encode; all business decisions live below.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opsdeck/internal/gate"
)

// Permission keys guarding the admin surfaces.
const (
	PermManageOrganizations = "organizations.manage"
	PermManageRoles         = "roles.manage"
	PermManageStaff         = "staff.manage"
)

// Deps bundles everything the router mounts.
type Deps struct {
	Gate        *gate.Gate
	Permissions gate.PermissionChecker
	Auth        *AuthHandler
	Orgs        *OrgHandler
	Directory   *DirectoryHandler
}

// NewRouter wires the full HTTP surface behind the request gate.
//
// /healthz and /metrics sit inside the router but on the gate's exclusion
// list, so they answer even when every backing store is down.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(deps.Gate.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	deps.Auth.Register(r)

	r.Route("/api/admin/orgs", func(r chi.Router) {
		r.Use(deps.Gate.RequirePermission(deps.Permissions, PermManageOrganizations))
		deps.Orgs.Register(r)
	})

	r.Route("/api/roles", func(r chi.Router) {
		r.Use(deps.Gate.RequirePermission(deps.Permissions, PermManageRoles))
		deps.Directory.RegisterRoles(r)
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(deps.Gate.RequirePermission(deps.Permissions, PermManageStaff))
		deps.Directory.RegisterStaff(r)
	})

	return r
}
