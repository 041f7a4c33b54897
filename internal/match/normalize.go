// Package match turns recognized document text and claimed identity fields
// into comparable forms and decides whether each claim appears in the text.
package match

import (
	"strings"
)

// monthTokens is ordered longest first so "september" wins over "sep".
var monthTokens = []struct {
	token string
	code  string
}{
	{"september", "09"},
	{"february", "02"},
	{"november", "11"},
	{"december", "12"},
	{"january", "01"},
	{"october", "10"},
	{"august", "08"},
	{"march", "03"},
	{"april", "04"},
	{"june", "06"},
	{"july", "07"},
	{"may", "05"},
	{"jan", "01"},
	{"feb", "02"},
	{"mar", "03"},
	{"apr", "04"},
	{"jun", "06"},
	{"jul", "07"},
	{"aug", "08"},
	{"sep", "09"},
	{"oct", "10"},
	{"nov", "11"},
	{"dec", "12"},
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// NormalizeAlnum lowercases text and drops everything but a-z and 0-9.
func NormalizeAlnum(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if isAlnum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeDate normalizes like NormalizeAlnum, then rewrites the first month
// token found (longest first) as its two digit code. Only one token is tried;
// all of its occurrences are replaced.
func NormalizeDate(text string) string {
	cleaned := NormalizeAlnum(text)
	if cleaned == "" {
		return ""
	}
	for _, m := range monthTokens {
		if strings.Contains(cleaned, m.token) {
			return strings.ReplaceAll(cleaned, m.token, m.code)
		}
	}
	return cleaned
}

// NormalizeWords lowercases text and collapses every run of characters outside
// a-z and 0-9 into one space, keeping word boundaries intact.
func NormalizeWords(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		if !isAlnum(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// digitsOnly keeps the ASCII digits of s.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// digitProjection replaces every rune that is neither a digit nor whitespace
// with a space, so digit runs keep their positions relative to each other.
func digitProjection(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '\v', r == '\f':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}
