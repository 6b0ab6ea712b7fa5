// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in history listings.
const PageSize = 20

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 100

// Params is a parsed page/limit pair. Page is 1-based.
type Params struct {
	Page  int
	Limit int
}

// Parse reads "page" and "limit" from the query string. Missing or invalid
// values fall back to page 1 and PageSize; limit is capped at MaxPageSize.
func Parse(r *http.Request) Params {
	p := Params{Page: atoiMin(query.Get(r, "page"), 1, 1), Limit: atoiMin(query.Get(r, "limit"), PageSize, 1)}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Normalize fills zero or out-of-range values with the defaults Parse uses.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = PageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Skip returns the number of rows to skip for Mongo Find().SetSkip().
func (p Params) Skip() int64 {
	return int64((p.Page - 1) * p.Limit)
}

// Meta describes a page of results for the response body.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewMeta computes the page count for total rows.
func NewMeta(p Params, total int64) Meta {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Meta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

func atoiMin(s string, def, min int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min {
		return def
	}
	return n
}
