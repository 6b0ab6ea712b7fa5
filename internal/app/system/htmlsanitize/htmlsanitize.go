// Package htmlsanitize cleans free-text fields (staff notes, payment
// descriptions) before they are stored and later echoed in JSON or email.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNoteLength caps stored notes, in runes.
const MaxNoteLength = 1000

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// PlainText strips every tag and returns trimmed text. Entities produced by
// the policy are unescaped so JSON clients see the characters the user typed.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Note is PlainText truncated to MaxNoteLength runes.
func Note(s string) string {
	s = PlainText(s)
	if r := []rune(s); len(r) > MaxNoteLength {
		s = strings.TrimSpace(string(r[:MaxNoteLength]))
	}
	return s
}

// Sanitize keeps safe formatting markup and removes scripts, handlers and
// unsafe URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugc.Sanitize(s)
}
