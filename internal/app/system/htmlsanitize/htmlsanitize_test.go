package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/ekomurojaat/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"whitespace", "   \n ", ""},
		{"plain", "Broken pipe on Navoi street", "Broken pipe on Navoi street"},
		{"trims", "  water leak  ", "water leak"},
		{"strips tags", "<p><strong>Smoke</strong> from the factory</p>", "Smoke from the factory"},
		{"drops script", "Hello<script>alert('xss')</script>", "Hello"},
		{"keeps ampersand", "Trees & bushes cut down", "Trees & bushes cut down"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tc.in); got != tc.want {
				t.Errorf("PlainText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
