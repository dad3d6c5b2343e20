package catalogue

import (
	"catalogue/internal/domain/filter"
)

const (
	DefaultLimit         = 24
	MaxLimit             = filter.MaxLimit
	DefaultSortBy        = filter.SortCreatedAt
	DefaultSortDirection = filter.SortDesc
)

// PaginationInput is the raw page request from the route layer.
// Zero or unknown values mean "use the default".
type PaginationInput struct {
	Page          int    `form:"page"`
	Limit         int    `form:"limit"`
	SortBy        string `form:"sortBy"`
	SortDirection string `form:"sortDirection"`
}

// ResolvedPagination is a validated page request with the computed skip.
type ResolvedPagination struct {
	Page          int
	Limit         int
	Skip          int
	SortBy        filter.SortField
	SortDirection filter.SortDirection
}

// Limits configures the default and maximum page size.
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits are used by ResolvePaginationDefaults.
var DefaultLimits = Limits{Default: DefaultLimit, Max: MaxLimit}

// ResolvePaginationDefaults clamps in to valid values using DefaultLimits.
func ResolvePaginationDefaults(in PaginationInput) ResolvedPagination {
	return DefaultLimits.Resolve(in)
}

// Resolve substitutes defaults for invalid fields and never fails.
// A limit above Max is clamped to Max.
func (l Limits) Resolve(in PaginationInput) ResolvedPagination {
	l = l.normalized()

	out := ResolvedPagination{
		Page:          in.Page,
		Limit:         in.Limit,
		SortBy:        filter.SortField(in.SortBy),
		SortDirection: filter.SortDirection(in.SortDirection),
	}
	if out.Page < 1 {
		out.Page = 1
	}
	if out.Limit < 1 {
		out.Limit = l.Default
	}
	if out.Limit > l.Max {
		out.Limit = l.Max
	}
	if !out.SortBy.Valid() {
		out.SortBy = DefaultSortBy
	}
	if !out.SortDirection.Valid() {
		out.SortDirection = DefaultSortDirection
	}
	out.Skip = (out.Page - 1) * out.Limit
	return out
}

func (l Limits) normalized() Limits {
	if l.Max < 1 || l.Max > MaxLimit {
		l.Max = MaxLimit
	}
	if l.Default < 1 || l.Default > l.Max {
		l.Default = min(DefaultLimit, l.Max)
	}
	return l
}

// PaginationFromQuery extracts page fields carried by the filter path.
func PaginationFromQuery(q filter.Query) PaginationInput {
	return PaginationInput{
		Page:          q.Page,
		Limit:         q.Limit,
		SortBy:        string(q.SortBy),
		SortDirection: string(q.SortDirection),
	}
}

// MergeInput fills fields missing from primary with those of fallback.
// Path tokens are passed as primary so a canonical path always wins over query parameters.
func MergeInput(primary, fallback PaginationInput) PaginationInput {
	out := primary
	if out.Page < 1 {
		out.Page = fallback.Page
	}
	if out.Limit < 1 {
		out.Limit = fallback.Limit
	}
	if out.SortBy == "" {
		out.SortBy = fallback.SortBy
		if out.SortDirection == "" {
			out.SortDirection = fallback.SortDirection
		}
	}
	return out
}

// Page is the envelope every listing returns. Docs is never nil.
type Page[T any] struct {
	Docs            []T                  `json:"docs"`
	Page            int                  `json:"page"`
	Limit           int                  `json:"limit"`
	TotalDocs       int64                `json:"totalDocs"`
	TotalActiveDocs int64                `json:"totalActiveDocs"`
	TotalPages      int                  `json:"totalPages"`
	HasPrevPage     bool                 `json:"hasPrevPage"`
	HasNextPage     bool                 `json:"hasNextPage"`
	SortBy          filter.SortField     `json:"sortBy"`
	SortDirection   filter.SortDirection `json:"sortDirection"`
}

// NewPage derives page count and navigation flags from totals.
func NewPage[T any](docs []T, p ResolvedPagination, totalDocs, totalActiveDocs int64) Page[T] {
	if docs == nil {
		docs = []T{}
	}
	totalPages := 0
	if p.Limit > 0 {
		totalPages = int((totalDocs + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Page[T]{
		Docs:            docs,
		Page:            p.Page,
		Limit:           p.Limit,
		TotalDocs:       totalDocs,
		TotalActiveDocs: totalActiveDocs,
		TotalPages:      totalPages,
		HasPrevPage:     p.Page > 1,
		HasNextPage:     p.Page < totalPages,
		SortBy:          p.SortBy,
		SortDirection:   p.SortDirection,
	}
}

// EmptyPage is the fallback returned when the store fails or yields nothing.
func EmptyPage[T any](p ResolvedPagination) Page[T] {
	return NewPage[T](nil, p, 0, 0)
}
