// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"go.uber.org/zap"
)

// ErrorLogger logs handler failures with request context and renders the
// matching error page. Handlers call it and return.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger writing to logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fs = append(fs, zap.String("user_id", u.ID), zap.String("role", u.Role))
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	return fs
}

// LogServerError logs msg at error level and renders a 500 page showing userMsg.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.Log.Error(msg, e.fields(r, err)...)
	renderError(w, r, http.StatusInternalServerError, "Something went wrong", userMsg, backURL)
}

// LogBadRequest logs msg at warn level and renders a 400 page showing userMsg.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.Log.Warn(msg, e.fields(r, err)...)
	renderError(w, r, http.StatusBadRequest, "Bad request", userMsg, backURL)
}

// NotFound renders the 404 page. Complaints outside the caller's scope are
// reported through here too, so their existence is not revealed.
func (e *ErrorLogger) NotFound(w http.ResponseWriter, r *http.Request, backURL string) {
	e.Log.Debug("not found", e.fields(r, nil)...)
	renderError(w, r, http.StatusNotFound, "Not found", "The page you were looking for does not exist.", backURL)
}
