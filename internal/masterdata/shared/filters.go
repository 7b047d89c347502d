package shared

import (
	"net/http"
	"strconv"
	"strings"
)

// ListFilters represents standard list endpoint filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}

const (
	// DefaultPage is the first page.
	DefaultPage = 1
	// DefaultLimit bounds unpaginated list requests.
	DefaultLimit = 20
)

// Normalize fills zero values with defaults.
func (f ListFilters) Normalize() ListFilters {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	return f
}

// FiltersFromQuery parses list filters off a request's query string.
func FiltersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{Search: strings.TrimSpace(q.Get("search"))}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if raw := q.Get("is_active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			f.IsActive = &active
		}
	}
	return f.Normalize()
}
