// Package pagination reads limit/offset query parameters and wraps list
// results in a paged envelope.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Params is a clamped limit/offset pair.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads "limit" and "offset", accepting "skip" as an alias for
// offset. Out-of-range values are clamped.
func FromContext(c echo.Context) Params {
	return Params{
		Limit:  clampLimit(atoi(c.QueryParam("limit"))),
		Offset: offset(c),
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

func offset(c echo.Context) int {
	raw := c.QueryParam("offset")
	if _, err := strconv.Atoi(raw); err != nil {
		raw = c.QueryParam("skip")
	}
	if n := atoi(raw); n > 0 {
		return n
	}
	return 0
}

// HasNext reports whether rows remain after this page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// Page is the JSON envelope for list endpoints. Data is never null.
type Page[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func NewResponse[T any](items []T, total int, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Data:    items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}
