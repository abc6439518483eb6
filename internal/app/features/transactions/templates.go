// internal/app/features/transactions/templates.go
package transactions

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "transactions",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
