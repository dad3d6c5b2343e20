package filter

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"catalogue/internal/core/types"
)

// PathDelimiter separates segments of a filter path.
const PathDelimiter = "/"

// MaxLimit is the largest page size a limit segment may carry.
const MaxLimit = 100

// ParseSegment decodes one segment. ok is false for malformed or unknown input,
// which callers drop silently.
func ParseSegment(segment string) (Facet, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(segment), Separator)
	if !found || key == "" || value == "" {
		return Facet{}, false
	}

	switch key {
	case KeyCategory:
		if !isSlug(value) {
			return Facet{}, false
		}
		return Facet{Kind: FacetCategory, Slug: value}, true

	case KeyPrice:
		lo, hi, ok := parsePriceRange(value)
		if !ok {
			return Facet{}, false
		}
		return Facet{Kind: FacetPriceRange, PriceMin: lo, PriceMax: hi}, true

	case KeySort:
		field, dir, ok := parseSort(value)
		if !ok {
			return Facet{}, false
		}
		return Facet{Kind: FacetSort, SortBy: field, SortDirection: dir}, true

	case KeyPage:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return Facet{}, false
		}
		return Facet{Kind: FacetPage, Number: n}, true

	case KeyLimit:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 || n > MaxLimit {
			return Facet{}, false
		}
		return Facet{Kind: FacetLimit, Number: n}, true
	}

	if !isSlug(key) || !isSlug(value) {
		return Facet{}, false
	}
	return Facet{Kind: FacetOption, Attribute: key, Slug: value}, true
}

// Decode folds path segments into a Query. It never fails.
// Repeated price, sort, page and limit segments keep the last valid one.
func Decode(segments []string) Query {
	var q Query
	for _, seg := range segments {
		f, ok := ParseSegment(seg)
		if !ok {
			continue
		}
		switch f.Kind {
		case FacetCategory:
			q.CategorySlugs = append(q.CategorySlugs, f.Slug)
		case FacetOption:
			if q.Options == nil {
				q.Options = make(map[string][]string)
			}
			q.Options[f.Attribute] = append(q.Options[f.Attribute], f.Slug)
		case FacetPriceRange:
			q.PriceMin, q.PriceMax = f.PriceMin, f.PriceMax
		case FacetSort:
			q.SortBy, q.SortDirection = f.SortBy, f.SortDirection
		case FacetPage:
			q.Page = f.Number
		case FacetLimit:
			q.Limit = f.Number
		}
	}

	q.CategorySlugs = sortedSet(q.CategorySlugs)
	for attr, slugs := range q.Options {
		q.Options[attr] = sortedSet(slugs)
	}
	return q
}

// SplitPath splits a "/"-delimited path into segments, dropping empty ones.
func SplitPath(path string) []string {
	parts := strings.Split(path, PathDelimiter)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DecodePath splits a "/"-delimited path and decodes it.
func DecodePath(path string) Query {
	return Decode(SplitPath(path))
}

// Encode renders q as canonical segments: categories, options by attribute,
// price, sort, page, limit. Equal queries always encode to the same list.
func Encode(q Query) []string {
	var segs []string

	for _, c := range sortedSet(q.CategorySlugs) {
		if isSlug(c) {
			segs = append(segs, KeyCategory+Separator+c)
		}
	}

	attrs := make([]string, 0, len(q.Options))
	for attr := range q.Options {
		if isSlug(attr) && !isReserved(attr) {
			attrs = append(attrs, attr)
		}
	}
	sort.Strings(attrs)
	for _, attr := range attrs {
		for _, slug := range sortedSet(q.Options[attr]) {
			if isSlug(slug) {
				segs = append(segs, OptionKey(attr, slug))
			}
		}
	}

	if q.HasPrice() {
		segs = append(segs, KeyPrice+Separator+formatBound(q.PriceMin)+"-"+formatBound(q.PriceMax))
	}

	if q.SortBy.Valid() {
		dir := q.SortDirection
		if !dir.Valid() {
			dir = SortDesc
		}
		segs = append(segs, KeySort+Separator+string(q.SortBy)+"-"+string(dir))
	}

	if q.Page > 1 {
		segs = append(segs, KeyPage+Separator+strconv.Itoa(q.Page))
	}
	if q.Limit > 0 && q.Limit <= MaxLimit {
		segs = append(segs, KeyLimit+Separator+strconv.Itoa(q.Limit))
	}

	return segs
}

// EncodePath joins Encode output with "/".
func EncodePath(q Query) string {
	return strings.Join(Encode(q), PathDelimiter)
}

func parsePriceRange(value string) (lo, hi *types.MinorUnits, ok bool) {
	left, right, found := strings.Cut(value, "-")
	if !found || (left == "" && right == "") {
		return nil, nil, false
	}
	if left != "" {
		if lo, ok = parseBound(left); !ok {
			return nil, nil, false
		}
	}
	if right != "" {
		if hi, ok = parseBound(right); !ok {
			return nil, nil, false
		}
	}
	if lo != nil && hi != nil && *lo > *hi {
		return nil, nil, false
	}
	return lo, hi, true
}

func parseBound(s string) (*types.MinorUnits, bool) {
	m, err := types.ParseMoney(s)
	if err != nil || m.IsNegative() {
		return nil, false
	}
	v := types.FromMoney(m)
	return &v, true
}

func formatBound(b *types.MinorUnits) string {
	if b == nil {
		return ""
	}
	return b.String()
}

func parseSort(value string) (SortField, SortDirection, bool) {
	i := strings.LastIndex(value, "-")
	if i <= 0 {
		return "", "", false
	}
	field, dir := SortField(value[:i]), SortDirection(value[i+1:])
	if !field.Valid() || !dir.Valid() {
		return "", "", false
	}
	return field, dir, true
}

func isReserved(key string) bool {
	switch key {
	case KeyCategory, KeyPrice, KeySort, KeyPage, KeyLimit:
		return true
	}
	return false
}

// isSlug accepts lowercase ASCII letters, digits, '-' and '_', starting with a letter or digit.
func isSlug(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case (r == '-' || r == '_') && i > 0:
		default:
			return false
		}
	}
	return true
}

func sortedSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
