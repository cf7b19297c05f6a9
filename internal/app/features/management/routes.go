// internal/app/features/management/routes.go
package management

import (
	"github.com/dalemusser/ekomurojaat/internal/app/policy/accesspolicy"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the administrator pages (typically under "/dashboard/management").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.With(sm.Require(accesspolicy.OpAdminDashboard)).Get("/", h.ServeDashboard)

	// Complaints
	r.With(sm.Require(accesspolicy.OpComplaintList)).Get("/complaints/", h.ServeComplaints)
	r.With(sm.Require(accesspolicy.OpComplaintView)).Get("/complaint/{id}/", h.ServeComplaint)
	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpComplaintUpdate))
		pr.Get("/complaint/{id}/update/", h.ServeComplaintUpdate)
		pr.Post("/complaint/{id}/update/", h.HandleComplaintUpdate)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpPriorityAssign))
		pr.Get("/priority/", h.ServePriority)
		pr.Post("/priority/", h.HandlePriority)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpOrganizationManage))
		pr.Get("/organizations/", h.ServeOrganizations)
		pr.Get("/organization/create/", h.ServeOrganizationCreate)
		pr.Post("/organization/create/", h.HandleOrganizationCreate)
		pr.Get("/organization/{id}/update/", h.ServeOrganizationUpdate)
		pr.Post("/organization/{id}/update/", h.HandleOrganizationUpdate)
		pr.Get("/organization/{id}/delete/", h.ServeOrganizationDelete)
		pr.Post("/organization/{id}/delete/", h.HandleOrganizationDelete)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpAccountManage))
		pr.Get("/users/", h.ServeUsers)
		pr.Get("/user/create/", h.ServeUserCreate)
		pr.Post("/user/create/", h.HandleUserCreate)
		pr.Get("/user/{id}/update/", h.ServeUserUpdate)
		pr.Post("/user/{id}/update/", h.HandleUserUpdate)
		pr.Get("/user/{id}/delete/", h.ServeUserDelete)
		pr.Post("/user/{id}/delete/", h.HandleUserDelete)
	})

	// Regions and districts
	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpGeographyManage))
		pr.Get("/regions/", h.ServeRegions)
		pr.Post("/regions/", h.HandleRegionCreate)
		pr.Get("/regions/{id}/", h.ServeRegion)
		pr.Post("/regions/{id}/update/", h.HandleRegionRename)
		pr.Post("/regions/{id}/delete/", h.HandleRegionDelete)
		pr.Post("/regions/{id}/districts/", h.HandleDistrictCreate)
		pr.Post("/regions/{id}/districts/{did}/update/", h.HandleDistrictRename)
		pr.Post("/regions/{id}/districts/{did}/delete/", h.HandleDistrictDelete)
	})

	return r
}
