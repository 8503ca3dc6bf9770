package game

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaskToken replaces every occurrence of the secret word in player text.
const MaskToken = "***"

// Redactor masks one secret word. It is built once per word.
type Redactor struct {
	word string
	re   *regexp.Regexp
}

// NewRedactor compiles a case-insensitive literal matcher for word.
func NewRedactor(word string) *Redactor {
	r := &Redactor{word: word}
	if word != "" {
		r.re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(word))
	}
	return r
}

// Redact masks every occurrence of the word in text.
func (r *Redactor) Redact(text string) string {
	if r == nil || r.re == nil {
		return text
	}
	return r.re.ReplaceAllLiteralString(text, MaskToken)
}

// Redact masks every case-insensitive literal occurrence of word in text.
func Redact(text, word string) string {
	return NewRedactor(word).Redact(text)
}

// Truncate caps s at limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// cleanText trims, redacts and caps player-supplied text.
func cleanText(text string, r *Redactor, limit int) string {
	return Truncate(r.Redact(strings.TrimSpace(text)), limit)
}
