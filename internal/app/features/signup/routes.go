// internal/app/features/signup/routes.go
package signup

import "github.com/go-chi/chi/v5"

// Routes is mounted at /signup.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeSignup)
	r.Post("/", h.HandleSignup)
	return r
}

// CheckCodeRoutes is mounted at /check-code.
func CheckCodeRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeCheckCode)
	r.Post("/", h.HandleCheckCode)
	r.Post("/resend/", h.HandleResend)
	return r
}
