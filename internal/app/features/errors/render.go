// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

type pageData struct {
	viewdata.BaseVM
	Status  int
	Message string
}

// renderError writes the status before rendering so the code survives a
// template failure.
func renderError(w http.ResponseWriter, r *http.Request, status int, title, msg, backURL string) {
	if backURL == "" {
		backURL = "/home/"
	}
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(w, r, title, backURL),
		Status:  status,
		Message: msg,
	}
	data.BackURL = backURL
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "error_page", data)
}

// NotFoundHandler is mounted as the router's fallback.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	renderError(w, r, http.StatusNotFound, "Not found", "The page you were looking for does not exist.", "/home/")
}

// CSRFFailure is the gorilla/csrf error handler.
func CSRFFailure(w http.ResponseWriter, r *http.Request) {
	renderError(w, r, http.StatusForbidden, "Form expired",
		"The form expired or was sent from another site. Reload the page and try again.", "/home/")
}
