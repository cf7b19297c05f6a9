// Package inputval validates form input structs declared with
// `validate:"..."` rules, `label:"..."` display names and `form:"..."` field
// names. Messages are written for end users and reference the label.
package inputval

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError is one failed rule, keyed by form field name.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// Result collects the failures of one Validate call in declaration order.
type Result struct {
	Errors []FieldError
}

// HasErrors reports whether any rule failed.
func (r Result) HasErrors() bool { return len(r.Errors) > 0 }

// First returns the first message, or "" when valid.
func (r Result) First() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0].Message
}

// ByField returns the first message per form field.
func (r Result) ByField() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}

var (
	once     sync.Once
	validate *validator.Validate

	usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,18}[0-9]$`)
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("form"); name != "" && name != "-" {
				return name
			}
			return strings.ToLower(f.Name)
		})
		_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernameRe.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || phoneRe.MatchString(s)
		})
	})
	return validate
}

// Validate runs the struct's rules. v must be a struct or pointer to struct.
func Validate(v any) Result {
	err := instance().Struct(v)
	if err == nil {
		return Result{}
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Result{Errors: []FieldError{{Message: "Invalid input."}}}
	}

	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	out := Result{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		label := fe.Field()
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if l := sf.Tag.Get("label"); l != "" {
				label = l
			}
		}
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Label:   label,
			Message: message(label, fe),
		})
	}
	return out
}

func message(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", label)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address.", label)
	case "eqfield":
		return fmt.Sprintf("%s does not match.", label)
	case "oneof":
		return fmt.Sprintf("%s has an invalid value.", label)
	case "username":
		return fmt.Sprintf("%s may contain only letters, digits and @ . + - _ characters.", label)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number.", label)
	case "latitude", "longitude":
		return fmt.Sprintf("%s is out of range.", label)
	case "numeric":
		return fmt.Sprintf("%s must contain only digits.", label)
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters.", label, fe.Param())
	}
	return fmt.Sprintf("%s is invalid.", label)
}

// IsValidEmail reports whether s is a bare address (no display name).
func IsValidEmail(s string) bool {
	return instance().Var(s, "required,email") == nil
}
