// Package paging implements numbered page navigation for complaint and
// account lists. Lists are small and ordered by creation time, so offset
// paging is sufficient.
package paging

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// CitizenPageSize is used for a citizen's own complaint list.
	CitizenPageSize = 10
	// StaffPageSize is used for administrator and moderator lists.
	StaffPageSize = 20
)

// ParsePage reads the 1-based ?page= parameter. Anything invalid is page 1.
func ParsePage(r *http.Request) int {
	s := query.Get(r, "page")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Page describes one page of a list and the links around it.
type Page struct {
	Number     int
	Size       int
	Total      int64
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevURL    string
	NextURL    string
	Start      int // 1-based index of the first row shown (0 when empty)
	End        int // 1-based index of the last row shown (0 when empty)
}

// New builds a Page. Out-of-range page numbers are clamped to the last page,
// so a stale link after deletions still shows rows.
func New(number, size int, total int64) Page {
	if size < 1 {
		size = 1
	}
	pages := int((total + int64(size) - 1) / int64(size))
	if pages < 1 {
		pages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > pages {
		number = pages
	}

	p := Page{
		Number:     number,
		Size:       size,
		Total:      total,
		TotalPages: pages,
		HasPrev:    number > 1,
		HasNext:    number < pages,
	}
	if total > 0 {
		p.Start = (number-1)*size + 1
		end := int64(number * size)
		if end > total {
			end = total
		}
		p.End = int(end)
	}
	return p
}

// FromRequest builds a Page for r and fills the prev/next links, keeping all
// other query parameters (filters) intact.
func FromRequest(r *http.Request, size int, total int64) Page {
	p := New(ParsePage(r), size, total)
	if p.HasPrev {
		p.PrevURL = Link(r.URL, p.Number-1)
	}
	if p.HasNext {
		p.NextURL = Link(r.URL, p.Number+1)
	}
	return p
}

// Skip is the number of rows before this page.
func (p Page) Skip() int64 { return int64((p.Number - 1) * p.Size) }

// FindOptions applies skip and limit to opts (allocating when nil).
func (p Page) FindOptions(opts *options.FindOptions) *options.FindOptions {
	if opts == nil {
		opts = options.Find()
	}
	return opts.SetSkip(p.Skip()).SetLimit(int64(p.Size))
}

// Link returns u's path with its query and page set to n.
func Link(u *url.URL, n int) string {
	q := u.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	if enc := q.Encode(); enc != "" {
		return u.Path + "?" + enc
	}
	return u.Path
}
