package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogue/internal/core/apperror"
	appctx "catalogue/internal/core/context"
	"catalogue/internal/core/id"
	"catalogue/internal/core/tenant"
	"catalogue/internal/core/types"
	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

func row(product id.ID, outlet string, city tenant.CitySlug, price types.MinorUnits) catalogue.StockItem {
	return catalogue.StockItem{ID: id.New(), ProductID: product, OutletID: outlet, CompanyID: "co-" + outlet, City: city, Price: price}
}

func TestCompute(t *testing.T) {
	p := id.New()
	a := row(p, "o1", "msk", 1000)
	b := row(p, "o2", "msk", 700)
	c := row(p, "o3", "spb", 1500)
	archived := row(p, "o4", "msk", 1)
	archived.Archived = true
	lost := row(p, "o5", "atlantis", 5)

	aggs, companies, skipped := Compute(
		[]catalogue.StockItem{a, b, c, archived, lost},
		func(c tenant.CitySlug) bool { return c == "msk" || c == "spb" },
	)

	require.Len(t, aggs, 2)
	msk := aggs["msk"]
	assert.Equal(t, 2, msk.Count)
	assert.Equal(t, types.MinorUnits(700), msk.MinPrice)
	assert.Equal(t, types.MinorUnits(1000), msk.MaxPrice)
	assert.ElementsMatch(t, []id.ID{a.ID, b.ID}, msk.StockItemIDs)

	spb := aggs["spb"]
	assert.Equal(t, 1, spb.Count)
	assert.Equal(t, types.MinorUnits(1500), spb.MinPrice)
	assert.Equal(t, types.MinorUnits(1500), spb.MaxPrice)

	assert.Equal(t, []string{"co-o1", "co-o2", "co-o3"}, companies)
	require.Len(t, skipped, 1)
	assert.Equal(t, lost.ID, skipped[0].ID)
	assert.Equal(t, []tenant.CitySlug{"msk", "spb"}, aggs.Cities())
}

func TestCompute_OrderIndependent(t *testing.T) {
	p := id.New()
	rows := []catalogue.StockItem{row(p, "o1", "msk", 3), row(p, "o2", "msk", 1), row(p, "o3", "msk", 2)}
	reversed := []catalogue.StockItem{rows[2], rows[1], rows[0]}

	first, _, _ := Compute(rows, nil)
	second, _, _ := Compute(reversed, nil)
	assert.Equal(t, first, second)
}

func TestCompute_Empty(t *testing.T) {
	aggs, companies, skipped := Compute(nil, nil)
	assert.Empty(t, aggs)
	assert.Empty(t, companies)
	assert.Empty(t, skipped)
}

func newTestAggregator(st *memStock, ps *memProducts, cache *countingCache) *Aggregator {
	return NewAggregator(AggregatorConfig{
		Stock:    st,
		Products: ps,
		Cities:   cities{"msk": true, "spb": true},
		Cache:    cache,
		Logger:   logger.Nop(),
	})
}

func TestAggregator_RecomputeIsIdempotent(t *testing.T) {
	product := catalogue.Product{ID: id.New(), Name: "Phone"}
	st := newMemStock(
		row(product.ID, "o1", "msk", 1000),
		row(product.ID, "o2", "msk", 900),
		row(product.ID, "o3", "spb", 1200),
	)
	ps := newMemProducts(product)
	agg := newTestAggregator(st, ps, &countingCache{})

	first, err := agg.Recompute(context.Background(), product.ID)
	require.NoError(t, err)
	second, err := agg.Recompute(context.Background(), product.ID)
	require.NoError(t, err)

	assert.Equal(t, first.StockCountByCity, second.StockCountByCity)
	assert.Equal(t, first.MinPriceByCity, second.MinPriceByCity)
	assert.Equal(t, first.MaxPriceByCity, second.MaxPriceByCity)
	assert.Equal(t, first.StockIDsByCity, second.StockIDsByCity)
	assert.Equal(t, 2, first.StockCountByCity["msk"])
	assert.Equal(t, types.MinorUnits(900), first.MinPriceByCity["msk"])
}

func TestAggregator_RecomputeMissingProduct(t *testing.T) {
	agg := newTestAggregator(newMemStock(), newMemProducts(), nil)

	_, err := agg.Recompute(context.Background(), id.New())
	assert.ErrorIs(t, err, catalogue.ErrProductNotFound)
}

func TestAggregator_RecomputeManyDedupes(t *testing.T) {
	a := catalogue.Product{ID: id.New()}
	b := catalogue.Product{ID: id.New()}
	ps := newMemProducts(a, b)
	cache := &countingCache{}
	agg := newTestAggregator(newMemStock(), ps, cache)

	require.NoError(t, agg.RecomputeMany(context.Background(), []id.ID{a.ID, b.ID, a.ID}))

	assert.Equal(t, 1, ps.writes[a.ID])
	assert.Equal(t, 1, ps.writes[b.ID])
	assert.Equal(t, 1, cache.bumps)
}

func TestService_AdmitArchiveDeactivate(t *testing.T) {
	product := catalogue.Product{ID: id.New(), Barcodes: []string{"4600000000001"}}
	other := catalogue.Product{ID: id.New()}
	st := newMemStock(row(other.ID, "o1", "msk", 500), row(other.ID, "o1", "msk", 600))
	ps := newMemProducts(product, other)
	outlets := &memOutlets{outlets: map[string]*tenant.Outlet{
		"o1": {ID: "o1", CompanyID: "c1", City: "msk", Active: true},
		"o2": {ID: "o2", CompanyID: "c1", City: "msk", Active: false},
	}}
	cache := &countingCache{}
	agg := newTestAggregator(st, ps, cache)
	svc := NewService(ServiceConfig{
		Aggregator: agg, Stock: st, Products: ps, Outlets: outlets,
		Cities: cities{"msk": true}, Logger: logger.Nop(),
	})
	ctx := context.Background()

	item, err := svc.Admit(ctx, AdmitInput{ProductID: product.ID, OutletID: "o1", Price: 1990, Available: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"4600000000001"}, item.Barcodes)
	assert.Equal(t, tenant.CitySlug("msk"), item.City)
	assert.Equal(t, 1, ps.products[product.ID].StockCountByCity["msk"])
	assert.Equal(t, []string{"c1"}, ps.products[product.ID].CompanyIDs)

	_, err = svc.Admit(ctx, AdmitInput{ProductID: product.ID, OutletID: "o2", Price: 1})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)

	_, err = svc.Archive(ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, ps.products[product.ID].StockCountByCity["msk"])

	res, err := svc.DeactivateOutlet(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.ArchivedRows)
	assert.Equal(t, []id.ID{other.ID}, res.Products)
	assert.False(t, res.Outlet.Active)
	assert.Empty(t, ps.products[other.ID].StockCountByCity)
	assert.Equal(t, 1, ps.writes[other.ID])
	assert.Equal(t, 2, ps.writes[product.ID])
}

func TestService_ErrorsMapToAppErrors(t *testing.T) {
	st := newMemStock()
	ps := newMemProducts()
	svc := NewService(ServiceConfig{
		Aggregator: newTestAggregator(st, ps, nil),
		Stock:      st, Products: ps,
		Outlets: &memOutlets{outlets: map[string]*tenant.Outlet{"o1": {ID: "o1", City: "msk", Active: true}}},
		Logger:  logger.Nop(),
	})
	ctx := context.Background()

	_, err := svc.Admit(ctx, AdmitInput{ProductID: id.New(), OutletID: "missing"})
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.Admit(ctx, AdmitInput{ProductID: id.New(), OutletID: "o1"})
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.Admit(ctx, AdmitInput{ProductID: id.New(), OutletID: "o1", Price: -1})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = svc.Archive(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))

	_, err = svc.Recompute(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_CompanyBoundOperator(t *testing.T) {
	st := newMemStock()
	product := catalogue.Product{ID: id.New(), Barcodes: []string{"1"}}
	ps := newMemProducts(product)
	outlets := &memOutlets{outlets: map[string]*tenant.Outlet{
		"o1": {ID: "o1", CompanyID: "c1", City: "msk", Active: true},
	}}
	svc := NewService(ServiceConfig{
		Aggregator: newTestAggregator(st, ps, nil),
		Stock:      st, Products: ps, Outlets: outlets,
		Logger: logger.Nop(),
	})

	foreign := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u", CompanyID: "c2"})
	_, err := svc.Admit(foreign, AdmitInput{ProductID: product.ID, OutletID: "o1", Price: 100})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)

	_, err = svc.DeactivateOutlet(foreign, "o1")
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
	assert.True(t, outlets.outlets["o1"].Active)

	own := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u", CompanyID: "c1"})
	item, err := svc.Admit(own, AdmitInput{ProductID: product.ID, OutletID: "o1", Price: 100})
	require.NoError(t, err)
	assert.Equal(t, "c1", item.CompanyID)
}
