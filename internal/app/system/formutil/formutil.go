// Package formutil provides helpers for form re-rendering with validation errors.
//
// When a form submission fails validation, the form should be re-rendered with:
// - The user's previously entered values (echoed back)
// - A page-level error and per-field errors
// - All the context data needed for the form (dropdowns, etc.)
//
// Example usage:
//
//	type orgFormData struct {
//		formutil.Base
//		Name string
//	}
//
//	data := orgFormData{Name: name}
//	formutil.SetBase(&data.Base, w, r, "New organization", "/dashboard/management/organizations/")
//	data.SetFieldErrors(result.ByField())
//	templates.Render(w, r, "organization_form", data)
package formutil

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/app/system/workflow"
)

// Base contains common fields for form pages that can be embedded in form data structs.
type Base struct {
	viewdata.BaseVM
	Error       template.HTML
	FieldErrors map[string]string
}

// SetBase populates the common fields from the request context.
func SetBase(b *Base, w http.ResponseWriter, r *http.Request, title, backDefault string) {
	b.BaseVM = viewdata.NewBaseVM(w, r, title, backDefault)
}

// SetError sets the page-level error message.
func (b *Base) SetError(msg string) {
	b.Error = template.HTML(template.HTMLEscapeString(msg))
}

// SetFieldErrors records per-field messages and, when no page-level error
// is set yet, a generic summary.
func (b *Base) SetFieldErrors(errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	if b.FieldErrors == nil {
		b.FieldErrors = make(map[string]string, len(errs))
	}
	for k, v := range errs {
		b.FieldErrors[k] = v
	}
	if b.Error == "" {
		b.SetError("Please correct the errors below.")
	}
}

// FieldError returns the message for one field ("" when valid).
func (b Base) FieldError(field string) string {
	return b.FieldErrors[field]
}

// SetWorkflowError maps a workflow.FieldError onto its field; other errors
// become the page-level message.
func (b *Base) SetWorkflowError(err error, messages map[error]string) {
	msg := err.Error()
	for target, m := range messages {
		if errors.Is(err, target) {
			msg = m
			break
		}
	}
	var fe *workflow.FieldError
	if errors.As(err, &fe) {
		b.SetFieldErrors(map[string]string{fe.Field: msg})
		return
	}
	b.SetError(msg)
}
