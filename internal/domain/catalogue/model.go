// Package catalogue holds the product and outlet stock models and the faceted listing:
// pipeline construction, execution into a Page envelope and the cached listing service.
package catalogue

import (
	"errors"
	"slices"
	"time"

	"catalogue/internal/core/id"
	"catalogue/internal/core/tenant"
	"catalogue/internal/core/types"
)

// Document store collections.
const (
	ProductsCollection = "products"
	StockCollection    = "shop_products"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrStockItemNotFound = errors.New("stock item not found")
)

// Product is a catalogue entity. Per-city maps are maintained by the stock aggregator
// and never patched incrementally.
type Product struct {
	ID            id.ID    `bson:"_id" json:"id"`
	Name          string   `bson:"name" json:"name"`
	Slug          string   `bson:"slug" json:"slug"`
	RubricSlug    string   `bson:"rubricSlug" json:"rubricSlug"`
	CategorySlugs []string `bson:"categorySlugs" json:"categorySlugs"`
	// OptionSlugs hold attribute-qualified keys such as "color:red" (filter.OptionKey).
	OptionSlugs   []string `bson:"optionSlugs" json:"optionSlugs"`
	Barcodes      []string `bson:"barcodes" json:"barcodes"`
	Active        bool     `bson:"active" json:"active"`
	CompanyIDs    []string `bson:"companyIds" json:"companyIds"`

	Views      map[tenant.CitySlug]int64 `bson:"views,omitempty" json:"views,omitempty"`
	Priorities map[tenant.CitySlug]int64 `bson:"priorities,omitempty" json:"priorities,omitempty"`

	StockCountByCity map[tenant.CitySlug]int              `bson:"stockCountByCity,omitempty" json:"stockCountByCity,omitempty"`
	MinPriceByCity   map[tenant.CitySlug]types.MinorUnits `bson:"minPriceByCity,omitempty" json:"minPriceByCity,omitempty"`
	MaxPriceByCity   map[tenant.CitySlug]types.MinorUnits `bson:"maxPriceByCity,omitempty" json:"maxPriceByCity,omitempty"`
	StockIDsByCity   map[tenant.CitySlug][]id.ID          `bson:"stockIdsByCity,omitempty" json:"stockIdsByCity,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Aggregates reassembles the per-city maps into one value per city.
func (p *Product) Aggregates() CityAggregates {
	out := make(CityAggregates, len(p.StockCountByCity))
	for city, count := range p.StockCountByCity {
		out[city] = CityAggregate{
			Count:        count,
			MinPrice:     p.MinPriceByCity[city],
			MaxPrice:     p.MaxPriceByCity[city],
			StockItemIDs: p.StockIDsByCity[city],
		}
	}
	return out
}

// StockItem is one outlet's offer of a product ("shop product").
// Archived rows are kept for history and excluded from aggregation.
type StockItem struct {
	ID                id.ID             `bson:"_id" json:"id"`
	ProductID         id.ID             `bson:"productId" json:"productId"`
	OutletID          string            `bson:"outletId" json:"outletId"`
	CompanyID         string            `bson:"companyId" json:"companyId"`
	City              tenant.CitySlug   `bson:"citySlug" json:"citySlug"`
	Barcodes          []string          `bson:"barcodes" json:"barcodes"`
	Price             types.MinorUnits  `bson:"price" json:"price"`
	OldPrice          *types.MinorUnits `bson:"oldPrice,omitempty" json:"oldPrice,omitempty"`
	DiscountedPercent int               `bson:"discountedPercent" json:"discountedPercent"`
	Available         int64             `bson:"available" json:"available"`
	Archived          bool              `bson:"archived" json:"archived"`
	CreatedAt         time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// CityAggregate summarises a product's non-archived stock rows in one city.
type CityAggregate struct {
	Count        int
	MinPrice     types.MinorUnits
	MaxPrice     types.MinorUnits
	StockItemIDs []id.ID
}

// CityAggregates is keyed by validated city slug.
type CityAggregates map[tenant.CitySlug]CityAggregate

// Cities returns the keys in ascending order.
func (a CityAggregates) Cities() []tenant.CitySlug {
	out := make([]tenant.CitySlug, 0, len(a))
	for c := range a {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// ProductCard is the listing projection of a product for one city.
type ProductCard struct {
	ID         id.ID             `bson:"_id" json:"id"`
	Name       string            `bson:"name" json:"name"`
	Slug       string            `bson:"slug" json:"slug"`
	RubricSlug string            `bson:"rubricSlug" json:"rubricSlug"`
	Active     bool              `bson:"active" json:"active"`
	StockCount int               `bson:"stockCount" json:"stockCount"`
	MinPrice   *types.MinorUnits `bson:"minPrice,omitempty" json:"minPrice,omitempty"`
	MaxPrice   *types.MinorUnits `bson:"maxPrice,omitempty" json:"maxPrice,omitempty"`
	Views      int64             `bson:"views" json:"views"`
	CreatedAt  time.Time         `bson:"createdAt" json:"createdAt"`
}
