// internal/app/features/moderator/routes.go
package moderator

import (
	"github.com/dalemusser/ekomurojaat/internal/app/policy/accesspolicy"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the moderator pages (typically under "/moderator").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.With(sm.Require(accesspolicy.OpModeratorDashboard)).Get("/dashboard/", h.ServeDashboard)
	r.With(sm.Require(accesspolicy.OpAssignedComplaintList)).Get("/complaints/", h.ServeList)
	r.With(sm.Require(accesspolicy.OpAssignedComplaintView)).Get("/complaint/{id}/", h.ServeView)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpAssignedComplaintEdit))
		pr.Get("/complaint/{id}/update/", h.ServeUpdate)
		pr.Post("/complaint/{id}/update/", h.HandleUpdate)
	})

	return r
}
