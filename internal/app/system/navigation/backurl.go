// Package navigation provides helpers for safe URL navigation and redirects.
package navigation

import (
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// BackURLOptions configures the behavior of SafeBackURL.
type BackURLOptions struct {
	// AllowedPrefix is the required URL prefix. Empty allows any local URL.
	AllowedPrefix string

	// ExcludedSubpaths are rejected to avoid bouncing back onto action pages.
	ExcludedSubpaths []string

	// Fallback is used when no acceptable return URL is present.
	Fallback string
}

// SafeBackURL reads "return" from the query string or form body and returns
// it when it is a local path matching opts; otherwise opts.Fallback.
func SafeBackURL(r *http.Request, opts BackURLOptions) string {
	ret := safeReturn(query.Get(r, "return"))
	if ret == "" {
		ret = safeReturn(r.FormValue("return"))
	}
	if ret == "" {
		return opts.Fallback
	}
	if opts.AllowedPrefix != "" && !strings.HasPrefix(ret, opts.AllowedPrefix) {
		return opts.Fallback
	}
	for _, excluded := range opts.ExcludedSubpaths {
		if strings.Contains(ret, excluded) {
			return opts.Fallback
		}
	}
	return ret
}

// safeReturn validates raw as a local path. urlutil cleans the path, which
// drops the trailing slash every route here is registered with, so it is
// put back when raw had one.
func safeReturn(raw string) string {
	raw = strings.TrimSpace(raw)
	clean := urlutil.SafeReturn(raw, "", "")
	if clean == "" {
		return ""
	}
	rawPath, _, _ := strings.Cut(raw, "?")
	p, q, hasQuery := strings.Cut(clean, "?")
	if !strings.HasSuffix(rawPath, "/") || strings.HasSuffix(p, "/") {
		return clean
	}
	if hasQuery {
		return p + "/?" + q
	}
	return p + "/"
}

var (
	// PriorityBackURL returns to the priority board with its filter intact.
	PriorityBackURL = BackURLOptions{
		AllowedPrefix: "/dashboard/management/priority/",
		Fallback:      "/dashboard/management/priority/",
	}

	// ModeratorBackURL is used by the moderator complaint pages.
	ModeratorBackURL = BackURLOptions{
		AllowedPrefix:    "/moderator/complaint",
		ExcludedSubpaths: []string{"/update/"},
		Fallback:         "/moderator/complaints/",
	}
)
