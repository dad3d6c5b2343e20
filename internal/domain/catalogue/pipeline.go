package catalogue

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/filter"
)

// Facet output field names.
const (
	facetDocs            = "docs"
	facetTotalDocs       = "totalDocs"
	facetTotalActiveDocs = "totalActiveDocs"
)

// QuerySpec is a fully built listing query. Stages are kept apart so each can be
// asserted without a store; Pipeline assembles them in execution order.
type QuerySpec struct {
	Collection string
	Scope      bson.D
	Match      bson.D
	Sort       bson.D
	Projection bson.D
	Pagination ResolvedPagination
}

// Pipeline returns the single aggregation that yields page slice and both totals.
func (s QuerySpec) Pipeline() mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$match", Value: s.Scope}}}
	if len(s.Match) > 0 {
		p = append(p, bson.D{{Key: "$match", Value: s.Match}})
	}
	p = append(p,
		bson.D{{Key: "$sort", Value: s.Sort}},
		FacetStage(s.Pagination, s.Projection),
		FlattenStage(),
	)
	return p
}

// Builder turns filter queries into listing specs.
type Builder struct {
	Limits Limits
}

// Build uses DefaultLimits.
func Build(q filter.Query, scope tenant.Scope) QuerySpec {
	return Builder{Limits: DefaultLimits}.Build(q, scope)
}

// Build restricts q to scope and resolves its page fields.
// Scope predicates always come first and filter input cannot remove them.
func (b Builder) Build(q filter.Query, scope tenant.Scope) QuerySpec {
	p := b.Limits.Resolve(PaginationFromQuery(q))
	return QuerySpec{
		Collection: ProductsCollection,
		Scope:      ScopeMatch(scope),
		Match:      FacetMatch(q, scope.City),
		Sort:       SortStage(p.SortBy, p.SortDirection, scope.City),
		Projection: CardProjection(scope.City),
		Pagination: p,
	}
}

// ScopeMatch limits candidates to products in stock in the city and, when set,
// offered by the company.
func ScopeMatch(scope tenant.Scope) bson.D {
	m := bson.D{}
	if scope.City != "" {
		m = append(m, bson.E{Key: cityField("stockCountByCity", scope.City), Value: bson.D{{Key: "$gt", Value: 0}}})
	}
	if scope.CompanyID != "" {
		m = append(m, bson.E{Key: "companyIds", Value: scope.CompanyID})
	}
	return m
}

// FacetMatch combines facet predicates. Categories are OR-ed, options must all be
// present as attribute-qualified keys and price bounds are inclusive. Absent bounds
// add no predicate.
func FacetMatch(q filter.Query, city tenant.CitySlug) bson.D {
	m := bson.D{}
	if len(q.CategorySlugs) > 0 {
		m = append(m, bson.E{Key: "categorySlugs", Value: bson.D{{Key: "$in", Value: q.CategorySlugs}}})
	}
	if opts := q.OptionKeys(); len(opts) > 0 {
		m = append(m, bson.E{Key: "optionSlugs", Value: bson.D{{Key: "$all", Value: opts}}})
	}
	if q.HasPrice() && city != "" {
		bounds := bson.D{}
		if q.PriceMin != nil {
			bounds = append(bounds, bson.E{Key: "$gte", Value: int64(*q.PriceMin)})
		}
		if q.PriceMax != nil {
			bounds = append(bounds, bson.E{Key: "$lte", Value: int64(*q.PriceMax)})
		}
		m = append(m, bson.E{Key: cityField("minPriceByCity", city), Value: bounds})
	}
	return m
}

// SortStage orders by the requested field, then city views desc, city priority desc
// and finally _id asc, so ties never depend on natural order.
func SortStage(by filter.SortField, dir filter.SortDirection, city tenant.CitySlug) bson.D {
	if !by.Valid() {
		by = DefaultSortBy
	}
	order := -1
	if dir == filter.SortAsc {
		order = 1
	}

	primary := sortKey(by, city)
	s := bson.D{{Key: primary, Value: order}}
	if city != "" {
		for _, k := range []string{cityField("views", city), cityField("priorities", city)} {
			if k != primary {
				s = append(s, bson.E{Key: k, Value: -1})
			}
		}
	}
	return append(s, bson.E{Key: "_id", Value: 1})
}

// FacetStage computes the page slice, the total and the active total in one pass.
func FacetStage(p ResolvedPagination, projection bson.D) bson.D {
	docs := bson.A{
		bson.D{{Key: "$skip", Value: int64(p.Skip)}},
		bson.D{{Key: "$limit", Value: int64(p.Limit)}},
	}
	if len(projection) > 0 {
		docs = append(docs, bson.D{{Key: "$project", Value: projection}})
	}
	return bson.D{{Key: "$facet", Value: bson.D{
		{Key: facetDocs, Value: docs},
		{Key: facetTotalDocs, Value: bson.A{
			bson.D{{Key: "$count", Value: "count"}},
		}},
		{Key: facetTotalActiveDocs, Value: bson.A{
			bson.D{{Key: "$match", Value: bson.D{{Key: "active", Value: true}}}},
			bson.D{{Key: "$count", Value: "count"}},
		}},
	}}}
}

// FlattenStage turns the single-element count arrays into numbers, zero when empty.
func FlattenStage() bson.D {
	count := func(field string) bson.D {
		return bson.D{{Key: "$ifNull", Value: bson.A{
			bson.D{{Key: "$arrayElemAt", Value: bson.A{"$" + field + ".count", 0}}},
			0,
		}}}
	}
	return bson.D{{Key: "$project", Value: bson.D{
		{Key: facetDocs, Value: 1},
		{Key: facetTotalDocs, Value: count(facetTotalDocs)},
		{Key: facetTotalActiveDocs, Value: count(facetTotalActiveDocs)},
	}}}
}

// CardProjection maps a product to its ProductCard for city.
func CardProjection(city tenant.CitySlug) bson.D {
	p := bson.D{
		{Key: "name", Value: 1},
		{Key: "slug", Value: 1},
		{Key: "rubricSlug", Value: 1},
		{Key: "active", Value: 1},
		{Key: "createdAt", Value: 1},
	}
	if city == "" {
		return p
	}
	return append(p,
		bson.E{Key: "stockCount", Value: "$" + cityField("stockCountByCity", city)},
		bson.E{Key: "minPrice", Value: "$" + cityField("minPriceByCity", city)},
		bson.E{Key: "maxPrice", Value: "$" + cityField("maxPriceByCity", city)},
		bson.E{Key: "views", Value: "$" + cityField("views", city)},
	)
}

func sortKey(by filter.SortField, city tenant.CitySlug) string {
	switch by {
	case filter.SortPrice:
		if city != "" {
			return cityField("minPriceByCity", city)
		}
	case filter.SortName:
		return "name"
	case filter.SortViews:
		if city != "" {
			return cityField("views", city)
		}
	}
	return "createdAt"
}

func cityField(field string, city tenant.CitySlug) string {
	return field + "." + string(city)
}
