package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/libraryhub/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "returned with torn cover", "returned with torn cover"},
		{"trims", "  ok  ", "ok"},
		{"strips script", "<script>alert('x')</script>late", "late"},
		{"strips tags keeps text", "<b>paid</b> in <i>cash</i>", "paid in cash"},
		{"keeps ampersand", "Tom & Jerry", "Tom & Jerry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNote_Truncates(t *testing.T) {
	got := htmlsanitize.Note(strings.Repeat("a", htmlsanitize.MaxNoteLength+50))
	if len([]rune(got)) != htmlsanitize.MaxNoteLength {
		t.Errorf("len = %d, want %d", len([]rune(got)), htmlsanitize.MaxNoteLength)
	}
}

func TestSanitize_RemovesScript(t *testing.T) {
	got := htmlsanitize.Sanitize("<p>Hello</p><script>alert('xss')</script>")
	if got != "<p>Hello</p>" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestSanitize_RemovesJavascriptHref(t *testing.T) {
	in := `<a href="javascript:alert('xss')">Click</a>`
	if got := htmlsanitize.Sanitize(in); strings.Contains(got, "javascript:") {
		t.Errorf("expected javascript: href removed, got %q", got)
	}
}
