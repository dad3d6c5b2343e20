// Package stock maintains per-city product aggregates derived from outlet stock rows,
// and the CMS mutations that change those rows.
package stock

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"catalogue/internal/core/id"
	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

var tracer = otel.Tracer("catalogue/stock")

// StockStore reads and writes outlet stock rows.
type StockStore interface {
	ListActiveByProduct(ctx context.Context, productID id.ID) ([]catalogue.StockItem, error)
	Insert(ctx context.Context, item *catalogue.StockItem) error
	// Archive marks a row archived and returns it. Archiving twice is not an error.
	Archive(ctx context.Context, stockItemID id.ID) (*catalogue.StockItem, error)
	// ArchiveByOutlet archives every live row of the outlet and returns the distinct
	// products that lost a row.
	ArchiveByOutlet(ctx context.Context, outletID string) (int64, []id.ID, error)
}

// ProductStore reads products and replaces their per-city aggregates.
type ProductStore interface {
	GetProduct(ctx context.Context, productID id.ID) (*catalogue.Product, error)
	// WriteAggregates replaces all per-city maps and companyIds in one update.
	WriteAggregates(ctx context.Context, productID id.ID, aggs catalogue.CityAggregates, companyIDs []string) (*catalogue.Product, error)
}

// Compute groups live rows by city. Rows in cities rejected by known are returned
// as skipped and do not contribute. The result depends only on the input set.
func Compute(rows []catalogue.StockItem, known func(tenant.CitySlug) bool) (catalogue.CityAggregates, []string, []catalogue.StockItem) {
	aggs := make(catalogue.CityAggregates)
	companies := make([]string, 0, len(rows))
	var skipped []catalogue.StockItem

	for _, r := range rows {
		if r.Archived {
			continue
		}
		if known != nil && !known(r.City) {
			skipped = append(skipped, r)
			continue
		}
		a, seen := aggs[r.City]
		if !seen || r.Price < a.MinPrice {
			a.MinPrice = r.Price
		}
		if !seen || r.Price > a.MaxPrice {
			a.MaxPrice = r.Price
		}
		a.Count++
		a.StockItemIDs = append(a.StockItemIDs, r.ID)
		aggs[r.City] = a

		if r.CompanyID != "" {
			companies = append(companies, r.CompanyID)
		}
	}

	for city, a := range aggs {
		id.Sort(a.StockItemIDs)
		aggs[city] = a
	}
	slices.Sort(companies)
	return aggs, slices.Compact(companies), skipped
}

// Aggregator recomputes product aggregates from current stock state.
// Recompute never applies deltas, so repeated or overlapping calls converge.
type Aggregator struct {
	stock    StockStore
	products ProductStore
	cities   tenant.CityDirectory
	cache    catalogue.Invalidator
	log      *logger.Logger
}

// AggregatorConfig wires an Aggregator. Cache may be nil.
type AggregatorConfig struct {
	Stock    StockStore
	Products ProductStore
	Cities   tenant.CityDirectory
	Cache    catalogue.Invalidator
	Logger   *logger.Logger
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Aggregator{
		stock:    cfg.Stock,
		products: cfg.Products,
		cities:   cfg.Cities,
		cache:    cfg.Cache,
		log:      log.WithComponent("stock_aggregator"),
	}
}

// Recompute rebuilds one product's per-city maps and invalidates cached listings.
func (a *Aggregator) Recompute(ctx context.Context, productID id.ID) (*catalogue.Product, error) {
	p, err := a.recompute(ctx, productID)
	if err != nil {
		return nil, err
	}
	a.invalidate(ctx)
	return p, nil
}

// RecomputeMany recomputes each distinct product once. Failures do not stop the
// remaining products; they are joined into the returned error.
func (a *Aggregator) RecomputeMany(ctx context.Context, productIDs []id.ID) error {
	ids := id.Unique(productIDs)
	if len(ids) == 0 {
		return nil
	}

	var errs []error
	for _, pid := range ids {
		if _, err := a.recompute(ctx, pid); err != nil {
			a.log.WithContext(ctx).Errorw("recompute failed", "product_id", pid.Hex(), "error", err)
			errs = append(errs, err)
		}
	}
	a.invalidate(ctx)
	return errors.Join(errs...)
}

func (a *Aggregator) recompute(ctx context.Context, productID id.ID) (*catalogue.Product, error) {
	ctx, span := tracer.Start(ctx, "stock.Recompute")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID.Hex()))

	rows, err := a.stock.ListActiveByProduct(ctx, productID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list stock of %s: %w", productID.Hex(), err)
	}

	aggs, companies, skipped := Compute(rows, a.knownCity(ctx))
	for _, r := range skipped {
		a.log.WithContext(ctx).Warnw("stock row in unknown city skipped",
			"product_id", productID.Hex(), "stock_item_id", r.ID.Hex(), "city", r.City)
	}

	p, err := a.products.WriteAggregates(ctx, productID, aggs, companies)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("write aggregates of %s: %w", productID.Hex(), err)
	}

	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.Int("cities", len(aggs)))
	return p, nil
}

func (a *Aggregator) knownCity(ctx context.Context) func(tenant.CitySlug) bool {
	if a.cities == nil {
		return nil
	}
	return func(c tenant.CitySlug) bool { return a.cities.IsKnownCity(ctx, c) }
}

func (a *Aggregator) invalidate(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Bump(ctx); err != nil {
		a.log.WithContext(ctx).Warnw("page cache invalidation failed", "error", err)
	}
}
