// Package pagination reads page/per_page query parameters and shapes listing
// responses.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Normalize fills missing values with defaults and caps PerPage.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage < 1:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	return p
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PerPage
}

// Limit is the number of rows to return.
func (p Params) Limit() int {
	return p.Normalize().PerPage
}

// FromRequest reads page and per_page from the query string. Unparseable
// values fall back to defaults; an oversized per_page is capped.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	return Params{
		Page:    queryInt(q.Get("page")),
		PerPage: queryInt(q.Get("per_page")),
	}.Normalize()
}

func queryInt(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

// Result is one page of a listing.
type Result[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
}

// NewResult wraps items fetched for params out of total rows. A nil slice is
// rendered as an empty list.
func NewResult[T any](items []T, total int, params Params) Result[T] {
	params = params.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := (total + params.PerPage - 1) / params.PerPage
	return Result[T]{
		Items:   items,
		Total:   total,
		Page:    params.Page,
		PerPage: params.PerPage,
		Pages:   pages,
		HasNext: params.Page < pages,
	}
}
