package home

import "github.com/go-chi/chi/v5"

// Routes serves "/" (redirect) and "/home/".
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeRoot)
	r.Get("/home/", h.ServeHome)
	return r
}

// GeoRoutes is mounted under /geo.
func GeoRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/regions/{id}/districts", h.ServeDistricts)
	return r
}
