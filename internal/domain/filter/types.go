// Package filter converts catalogue filter paths to structured queries and back.
//
// A path is a list of "key:value" segments. Reserved keys select the category,
// price range, sort, page and limit facets; every other key names an attribute
// whose option slug is given as the value.
package filter

import (
	"slices"

	"catalogue/internal/core/types"
)

// Separator splits a segment into facet key and value.
const Separator = ":"

// Reserved segment keys.
const (
	KeyCategory = "category"
	KeyPrice    = "price"
	KeySort     = "sort"
	KeyPage     = "page"
	KeyLimit    = "limit"
)

// FacetKind is the closed set of facets a segment can decode to.
type FacetKind int

const (
	FacetCategory FacetKind = iota + 1
	FacetOption
	FacetPriceRange
	FacetSort
	FacetPage
	FacetLimit
)

func (k FacetKind) String() string {
	switch k {
	case FacetCategory:
		return "category"
	case FacetOption:
		return "option"
	case FacetPriceRange:
		return "price_range"
	case FacetSort:
		return "sort"
	case FacetPage:
		return "page"
	case FacetLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// Facet is one decoded segment. Only the fields relevant to Kind are set.
type Facet struct {
	Kind FacetKind

	// Slug is the category slug or option slug.
	Slug string
	// Attribute is the attribute slug of an option facet.
	Attribute string

	PriceMin *types.MinorUnits
	PriceMax *types.MinorUnits

	SortBy        SortField
	SortDirection SortDirection

	// Number is the page or limit value.
	Number int
}

// SortField is a whitelisted sort key.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortPrice     SortField = "price"
	SortName      SortField = "name"
	SortViews     SortField = "views"
)

// Valid reports whether f is a known sort field.
func (f SortField) Valid() bool {
	switch f {
	case SortCreatedAt, SortPrice, SortName, SortViews:
		return true
	}
	return false
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Valid reports whether d is asc or desc.
func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// Query is the structured form of a filter path.
//
// CategorySlugs are OR-combined; Options (option slugs grouped by attribute) are AND-combined.
// Zero SortBy, Page and Limit mean "not specified".
type Query struct {
	CategorySlugs []string
	Options       map[string][]string

	PriceMin *types.MinorUnits
	PriceMax *types.MinorUnits

	SortBy        SortField
	SortDirection SortDirection

	Page  int
	Limit int
}

// OptionKey qualifies an option slug by its attribute, as stored in a product's
// optionSlugs. Slugs never contain the key/value separator, so the key is unambiguous.
func OptionKey(attribute, option string) string {
	return attribute + Separator + option
}

// OptionKeys returns every selected option as an attribute-qualified key, sorted and unique.
func (q Query) OptionKeys() []string {
	var out []string
	for attr, slugs := range q.Options {
		for _, slug := range slugs {
			out = append(out, OptionKey(attr, slug))
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// HasPrice reports whether at least one price bound is set.
func (q Query) HasPrice() bool {
	return q.PriceMin != nil || q.PriceMax != nil
}

// IsEmpty reports whether the query narrows nothing.
func (q Query) IsEmpty() bool {
	return len(q.CategorySlugs) == 0 && len(q.Options) == 0 && !q.HasPrice()
}
