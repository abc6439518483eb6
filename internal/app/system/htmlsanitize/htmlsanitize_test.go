package htmlsanitize_test

import (
	"html/template"
	"strings"
	"testing"

	"github.com/dalemusser/paytrack/internal/app/system/htmlsanitize"
)

func TestSanitize_PlainText(t *testing.T) {
	result := htmlsanitize.Sanitize("Hello, World!")
	if result != "Hello, World!" {
		t.Errorf("expected plain text unchanged, got %q", result)
	}
}

func TestSanitize_SafeHTML(t *testing.T) {
	input := "<p><strong>Bold</strong> and <em>italic</em></p>"
	result := htmlsanitize.Sanitize(input)
	if result != input {
		t.Errorf("expected safe HTML preserved, got %q", result)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	input := "<p>Hello</p><script>alert('xss')</script>"
	result := htmlsanitize.Sanitize(input)
	if result != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", result)
	}
}

func TestSanitize_RemovesOnclick(t *testing.T) {
	input := `<button onclick="alert('xss')">Click</button>`
	result := htmlsanitize.Sanitize(input)
	if result == input {
		t.Error("expected onclick attribute to be removed")
	}
}

func TestSanitize_RemovesJavascriptHref(t *testing.T) {
	input := `<a href="javascript:alert('xss')">Click</a>`
	result := htmlsanitize.Sanitize(input)
	if result == input {
		t.Error("expected javascript: href to be removed")
	}
}

func TestSanitize_AllowsSafeLinks(t *testing.T) {
	input := `<a href="https://example.com">Link</a>`
	result := htmlsanitize.Sanitize(input)
	if !strings.Contains(result, "https://example.com") {
		t.Errorf("expected safe link preserved, got %q", result)
	}
}

func TestSanitize_AllowsTables(t *testing.T) {
	input := `<table><thead><tr><th>Header</th></tr></thead><tbody><tr><td>Cell</td></tr></tbody></table>`
	result := htmlsanitize.Sanitize(input)
	if result != input {
		t.Errorf("expected table preserved, got %q", result)
	}
}

func TestSanitize_AllowsTextFormatting(t *testing.T) {
	input := "<u>underline</u> <s>strikethrough</s> <sub>sub</sub> <sup>sup</sup> <mark>mark</mark>"
	result := htmlsanitize.Sanitize(input)
	if result != input {
		t.Errorf("expected text formatting preserved, got %q", result)
	}
}

func TestSanitize_RemovesIframe(t *testing.T) {
	input := `<p>Content</p><iframe src="https://evil.example"></iframe>`
	result := htmlsanitize.Sanitize(input)
	if strings.Contains(result, "iframe") {
		t.Error("expected iframe to be removed")
	}
	if !strings.Contains(result, "Content") {
		t.Error("expected safe content to be preserved")
	}
}

func TestSanitizeToHTML_RemovesDangerousContent(t *testing.T) {
	input := "<p>Hello</p><script>alert('xss')</script>"
	result := htmlsanitize.SanitizeToHTML(input)
	if string(result) != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", result)
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"Hello, World!", true},
		{"<p>Hello</p>", false},
		{"5 < 10", true},
		{"5 > 3", true},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.input); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPlainTextToHTML_NewlinesConverted(t *testing.T) {
	result := htmlsanitize.PlainTextToHTML("Line 1\nLine 2\nLine 3")
	expected := "<p>Line 1<br>Line 2<br>Line 3</p>"
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestPlainTextToHTML_HTMLEscaped(t *testing.T) {
	result := htmlsanitize.PlainTextToHTML("<script>alert('xss')</script>")
	if strings.Contains(result, "<script>") {
		t.Error("expected HTML to be escaped")
	}
}

func TestPrepareForDisplay(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  template.HTML
	}{
		{"empty", "", ""},
		{"plain text", "Hello, World!", "<p>Hello, World!</p>"},
		{"html passthrough", "<p>Hello</p>", "<p>Hello</p>"},
		{"dangerous html", "<p>Hello</p><script>alert('xss')</script>", "<p>Hello</p>"},
		{"plain with newlines", "Line 1\nLine 2", "<p>Line 1<br>Line 2</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := htmlsanitize.PrepareForDisplay(tt.input)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
