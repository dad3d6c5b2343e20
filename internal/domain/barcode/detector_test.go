package barcode

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogue/internal/core/apperror"
	appctx "catalogue/internal/core/context"
	"catalogue/internal/core/id"
	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

type memStore struct {
	products []catalogue.Product
	stock    []catalogue.StockItem
	lookups  []string
	err      error
}

func (m *memStore) FindProductsByBarcode(_ context.Context, code string, exclude *id.ID) ([]catalogue.Product, error) {
	m.lookups = append(m.lookups, code)
	if m.err != nil {
		return nil, m.err
	}
	var out []catalogue.Product
	for _, p := range m.products {
		if exclude != nil && p.ID == *exclude {
			continue
		}
		if slices.Contains(p.Barcodes, code) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) FindOutletStockByBarcode(_ context.Context, outletID, code string, exclude *id.ID) ([]catalogue.StockItem, error) {
	m.lookups = append(m.lookups, code)
	var out []catalogue.StockItem
	for _, s := range m.stock {
		if s.OutletID != outletID || (exclude != nil && s.ID == *exclude) {
			continue
		}
		if slices.Contains(s.Barcodes, code) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []id.ID) ([]catalogue.Product, error) {
	var out []catalogue.Product
	for _, p := range m.products {
		if slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestFindCatalogueCollisions_ExcludesSubject(t *testing.T) {
	x := catalogue.Product{ID: id.New(), Name: "X", Slug: "x", Barcodes: []string{"123"}}
	y := catalogue.Product{ID: id.New(), Name: "Y", Slug: "y", Barcodes: []string{"123", "456"}}
	store := &memStore{products: []catalogue.Product{x, y}}
	d := NewDetector(store, logger.Nop())

	sets, err := d.FindCatalogueCollisions(context.Background(), []string{"123"}, &x.ID)
	require.NoError(t, err)

	require.Len(t, sets, 1)
	assert.Equal(t, "123", sets[0].Barcode)
	require.Len(t, sets[0].Items, 1)
	assert.Equal(t, y.ID, sets[0].Items[0].ProductID)
	assert.Equal(t, "Y", sets[0].Items[0].ProductName)
}

func TestFindCatalogueCollisions_OmitsEmptyAndCollapsesDuplicates(t *testing.T) {
	p := catalogue.Product{ID: id.New(), Barcodes: []string{"111"}}
	store := &memStore{products: []catalogue.Product{p}}
	d := NewDetector(store, logger.Nop())

	sets, err := d.FindCatalogueCollisions(context.Background(), []string{"111", " 111 ", "999", ""}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"111", "999"}, store.lookups)
	require.Len(t, sets, 1)
	assert.Equal(t, "111", sets[0].Barcode)
}

func TestFindCatalogueCollisions_StoreError(t *testing.T) {
	d := NewDetector(&memStore{err: errors.New("boom")}, logger.Nop())

	_, err := d.FindCatalogueCollisions(context.Background(), []string{"1"}, nil)
	assert.Error(t, err)
}

func TestFindOutletCollisions_ScopedAndResolved(t *testing.T) {
	phone := catalogue.Product{ID: id.New(), Name: "Phone", Slug: "phone"}
	cable := catalogue.Product{ID: id.New(), Name: "Cable", Slug: "cable"}
	self := catalogue.StockItem{ID: id.New(), ProductID: phone.ID, OutletID: "o1", Barcodes: []string{"777"}}
	other := catalogue.StockItem{ID: id.New(), ProductID: cable.ID, OutletID: "o1", Barcodes: []string{"777"}}
	elsewhere := catalogue.StockItem{ID: id.New(), ProductID: cable.ID, OutletID: "o2", Barcodes: []string{"777"}}

	store := &memStore{
		products: []catalogue.Product{phone, cable},
		stock:    []catalogue.StockItem{self, other, elsewhere},
	}
	d := NewDetector(store, logger.Nop())

	sets, err := d.FindOutletCollisions(context.Background(), []string{"777", "000"}, "o1", &self.ID)
	require.NoError(t, err)

	require.Len(t, sets, 1)
	require.Len(t, sets[0].Items, 1)
	item := sets[0].Items[0]
	assert.Equal(t, cable.ID, item.ProductID)
	assert.Equal(t, "Cable", item.ProductName)
	assert.Equal(t, "o1", item.OutletID)
	require.NotNil(t, item.StockItemID)
	assert.Equal(t, other.ID, *item.StockItemID)
}

func TestFindOutletCollisions_None(t *testing.T) {
	d := NewDetector(&memStore{}, logger.Nop())

	sets, err := d.FindOutletCollisions(context.Background(), []string{"1", "2"}, "o1", nil)
	require.NoError(t, err)
	assert.Empty(t, sets)
}

type outletTable map[string]*tenant.Outlet

func (o outletTable) GetOutlet(_ context.Context, outletID string) (*tenant.Outlet, error) {
	if out, ok := o[outletID]; ok {
		return out, nil
	}
	return nil, tenant.ErrOutletNotFound
}

func TestFindOutletCollisions_CompanyBoundOperator(t *testing.T) {
	row := catalogue.StockItem{ID: id.New(), ProductID: id.New(), OutletID: "o2", Barcodes: []string{"777"}}
	store := &memStore{stock: []catalogue.StockItem{row}}
	d := NewDetector(store, logger.Nop()).WithOutlets(outletTable{
		"o1": {ID: "o1", CompanyID: "c1"},
		"o2": {ID: "o2", CompanyID: "c2"},
	})

	bound := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u", CompanyID: "c1"})

	_, err := d.FindOutletCollisions(bound, []string{"777"}, "o2", nil)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
	assert.Empty(t, store.lookups)

	_, err = d.FindOutletCollisions(bound, []string{"777"}, "missing", nil)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNotFound, appErr.Code)

	sets, err := d.FindOutletCollisions(bound, []string{"777"}, "o1", nil)
	require.NoError(t, err)
	assert.Empty(t, sets)

	admin := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "a", IsAdmin: true})
	sets, err = d.FindOutletCollisions(admin, []string{"777"}, "o2", nil)
	require.NoError(t, err)
	assert.Len(t, sets, 1)
}

func TestCollisions_MarkTruncatedSets(t *testing.T) {
	store := &memStore{}
	for i := 0; i < LookupLimit; i++ {
		p := catalogue.Product{ID: id.New(), Barcodes: []string{"999"}}
		store.products = append(store.products, p)
		store.stock = append(store.stock, catalogue.StockItem{ID: id.New(), ProductID: p.ID, OutletID: "o1", Barcodes: []string{"999"}})
	}
	store.products = append(store.products, catalogue.Product{ID: id.New(), Barcodes: []string{"555"}})
	d := NewDetector(store, logger.Nop())

	sets, err := d.FindCatalogueCollisions(context.Background(), []string{"999", "555"}, nil)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Len(t, sets[0].Items, MaxItems)
	assert.True(t, sets[0].Truncated)
	assert.Len(t, sets[1].Items, 1)
	assert.False(t, sets[1].Truncated)

	sets, err = d.FindOutletCollisions(context.Background(), []string{"999"}, "o1", nil)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Len(t, sets[0].Items, MaxItems)
	assert.True(t, sets[0].Truncated)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, Normalize([]string{" b", "a", "b ", "  "}))
	assert.Empty(t, Normalize(nil))
}
