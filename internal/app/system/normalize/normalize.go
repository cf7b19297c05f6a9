// Package normalize canonicalizes identifiers before they are stored or
// compared.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims and lowercases an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Username trims a username; case is preserved for display.
func Username(s string) string {
	return strings.TrimSpace(s)
}

// UsernameKey is the case- and diacritic-insensitive lookup key for a username.
func UsernameKey(s string) string {
	return text.Fold(strings.TrimSpace(s))
}

// Name collapses internal runs of whitespace and trims the ends.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role trims and lowercases a role tag.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Phone keeps digits and a leading plus sign.
func Phone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
