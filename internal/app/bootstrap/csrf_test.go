package bootstrap_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Every POST form must carry the hidden token field that csrf.Protect
// checks, or the submit comes back 403. New templates are easy to get
// wrong, so this walks all of them.
func TestEveryPostFormCarriesCSRFToken(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "features", "*", "templates", "*.gohtml"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no templates found; the glob path is wrong")
	}

	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		content := string(raw)

		for rest := content; ; {
			i := strings.Index(rest, `method="post"`)
			if i < 0 {
				break
			}
			rest = rest[i:]
			end := strings.Index(rest, "</form>")
			if end < 0 {
				t.Errorf("%s: unterminated form after %q", file, rest[:40])
				break
			}
			if !strings.Contains(rest[:end], "gorilla.csrf.Token") {
				t.Errorf("%s: POST form without a CSRF token field: %q", file, strings.TrimSpace(rest[:60]))
			}
			rest = rest[end:]
		}
	}
}
