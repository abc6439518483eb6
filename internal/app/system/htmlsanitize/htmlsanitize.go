// Package htmlsanitize cleans user-supplied HTML before storage or display.
// Organization descriptions and notification messages may carry rich text
// from older imports; everything rendered with template.HTML goes through
// this package first.
package htmlsanitize

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	// Tables, used by imported descriptions.
	p.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	p.AllowAttrs("class", "style").OnElements("table", "thead", "tbody", "tr", "th", "td")

	// Extra inline formatting beyond the UGC defaults.
	p.AllowElements("u", "s", "sub", "sup", "mark")

	return p
}

// Sanitize removes unsafe HTML, keeping the formatting tags the UI renders.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}

// SanitizeToHTML sanitizes and returns template.HTML for direct rendering.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// IsPlainText reports whether s contains no HTML tags. A string needs both
// '<' and '>' to count as markup, so "5 < 10" stays plain text.
func IsPlainText(s string) bool {
	return !strings.Contains(s, "<") || !strings.Contains(s, ">")
}

// PlainTextToHTML escapes plain text and wraps it in a paragraph, turning
// newlines into <br> so stored text keeps its line structure.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	escaped := template.HTMLEscapeString(s)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return "<p>" + escaped + "</p>"
}

// PrepareForDisplay converts stored content to safe template.HTML. Plain
// text is escaped and paragraph-wrapped; HTML is sanitized.
func PrepareForDisplay(s string) template.HTML {
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return template.HTML(PlainTextToHTML(s))
	}
	return SanitizeToHTML(s)
}
