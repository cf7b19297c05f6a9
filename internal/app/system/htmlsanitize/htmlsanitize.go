// Package htmlsanitize strips markup from user-supplied text before it is
// stored. Complaint descriptions, answers and addresses are plain text; the
// templates escape them again on output.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag (and the content of script/style elements) and
// returns unescaped text trimmed of surrounding whitespace.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
