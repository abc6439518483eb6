// internal/app/features/layout/templates.go
//
// The layout feature has no routes; it only registers the shared
// partials (page head, navigation, footer) that page templates in the
// other features include.
package layout

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "layout",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
