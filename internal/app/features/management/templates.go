// internal/app/features/management/templates.go
package management

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "management",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
