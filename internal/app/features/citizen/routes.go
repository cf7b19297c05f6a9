// internal/app/features/citizen/routes.go
package citizen

import (
	"github.com/dalemusser/ekomurojaat/internal/app/policy/accesspolicy"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the citizen pages (typically under "/user").
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.With(sm.Require(accesspolicy.OpCitizenDashboard)).Get("/dashboard/", h.ServeDashboard)
	r.With(sm.Require(accesspolicy.OpOwnComplaintList)).Get("/complaints/", h.ServeList)
	r.With(sm.Require(accesspolicy.OpProfileView)).Get("/profile/", h.ServeProfile)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpOwnComplaintCreate))
		pr.Get("/complaint/create/", h.ServeCreate)
		pr.Post("/complaint/create/", h.HandleCreate)
	})

	r.With(sm.Require(accesspolicy.OpOwnComplaintView)).Get("/complaint/{id}/", h.ServeView)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.Require(accesspolicy.OpOwnComplaintDelete))
		pr.Get("/complaint/{id}/delete/", h.ServeDelete)
		pr.Post("/complaint/{id}/delete/", h.HandleDelete)
	})

	return r
}
