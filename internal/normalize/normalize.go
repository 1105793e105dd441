// Package normalize canonicalizes user-supplied strings before they are stored or compared.
package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag and escapes what is left.
var strict = bluemonday.StrictPolicy()

// MaxMessageLength is the longest chat message, in runes, that Message keeps.
const MaxMessageLength = 4000

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Message trims surrounding whitespace, truncates to MaxMessageLength runes, strips markup
// and escapes the remaining text so it is safe to render. It returns "" when nothing but
// whitespace or markup was sent.
func Message(m string) string {
	m = strings.TrimSpace(m)
	if m == "" {
		return ""
	}
	if utf8.RuneCountInString(m) > MaxMessageLength {
		m = string([]rune(m)[:MaxMessageLength])
	}
	return strings.TrimSpace(strict.Sanitize(m))
}
