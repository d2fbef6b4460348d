package models

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps (Page-1)*Limit within a 32-bit offset.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// PageRequest is a 1-based offset pagination request.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps the request to a valid page and size.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of a paginated listing plus navigation metadata.
type Page[T any] struct {
	Docs        []T   `json:"docs"`
	TotalDocs   int64 `json:"totalDocs"`
	Limit       int   `json:"limit"`
	Page        int   `json:"page"`
	TotalPages  int   `json:"totalPages"`
	HasPrevPage bool  `json:"hasPrevPage"`
	HasNextPage bool  `json:"hasNextPage"`
	PrevPage    *int  `json:"prevPage"`
	NextPage    *int  `json:"nextPage"`
}

// NewPage assembles the page envelope for docs fetched with req out of total rows.
func NewPage[T any](docs []T, total int64, req PageRequest) Page[T] {
	if docs == nil {
		docs = []T{}
	}
	totalPages := 0
	if req.Limit > 0 {
		totalPages = int((total + int64(req.Limit) - 1) / int64(req.Limit))
	}

	page := Page[T]{
		Docs:       docs,
		TotalDocs:  total,
		Limit:      req.Limit,
		Page:       req.Page,
		TotalPages: totalPages,
	}
	if req.Page > 1 {
		prev := req.Page - 1
		page.HasPrevPage = true
		page.PrevPage = &prev
	}
	if req.Page < totalPages {
		next := req.Page + 1
		page.HasNextPage = true
		page.NextPage = &next
	}
	return page
}

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection treats anything other than "asc" as descending.
func ParseSortDirection(s string) SortDirection {
	if s == string(SortAsc) {
		return SortAsc
	}
	return SortDesc
}
