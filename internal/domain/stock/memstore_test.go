package stock

import (
	"context"
	"sync"

	"catalogue/internal/core/id"
	"catalogue/internal/core/tenant"
	"catalogue/internal/core/types"
	"catalogue/internal/domain/catalogue"
)

type memStock struct {
	mu   sync.Mutex
	rows map[id.ID]*catalogue.StockItem
}

func newMemStock(rows ...catalogue.StockItem) *memStock {
	m := &memStock{rows: map[id.ID]*catalogue.StockItem{}}
	for i := range rows {
		r := rows[i]
		m.rows[r.ID] = &r
	}
	return m
}

func (m *memStock) ListActiveByProduct(_ context.Context, productID id.ID) ([]catalogue.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalogue.StockItem
	for _, r := range m.rows {
		if r.ProductID == productID && !r.Archived {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStock) Insert(_ context.Context, item *catalogue.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.rows[item.ID] = &cp
	return nil
}

func (m *memStock) Archive(_ context.Context, stockItemID id.ID) (*catalogue.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[stockItemID]
	if !ok {
		return nil, catalogue.ErrStockItemNotFound
	}
	r.Archived = true
	cp := *r
	return &cp, nil
}

func (m *memStock) ArchiveByOutlet(_ context.Context, outletID string) (int64, []id.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		n   int64
		ids []id.ID
	)
	for _, r := range m.rows {
		if r.OutletID == outletID && !r.Archived {
			r.Archived = true
			n++
			ids = append(ids, r.ProductID)
		}
	}
	return n, ids, nil
}

type memProducts struct {
	mu       sync.Mutex
	products map[id.ID]*catalogue.Product
	writes   map[id.ID]int
}

func newMemProducts(ps ...catalogue.Product) *memProducts {
	m := &memProducts{products: map[id.ID]*catalogue.Product{}, writes: map[id.ID]int{}}
	for i := range ps {
		p := ps[i]
		m.products[p.ID] = &p
	}
	return m
}

func (m *memProducts) GetProduct(_ context.Context, productID id.ID) (*catalogue.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, catalogue.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) WriteAggregates(_ context.Context, productID id.ID, aggs catalogue.CityAggregates, companyIDs []string) (*catalogue.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, catalogue.ErrProductNotFound
	}
	p.StockCountByCity = map[tenant.CitySlug]int{}
	p.MinPriceByCity = map[tenant.CitySlug]types.MinorUnits{}
	p.MaxPriceByCity = map[tenant.CitySlug]types.MinorUnits{}
	p.StockIDsByCity = map[tenant.CitySlug][]id.ID{}
	for city, a := range aggs {
		p.StockCountByCity[city] = a.Count
		p.MinPriceByCity[city] = a.MinPrice
		p.MaxPriceByCity[city] = a.MaxPrice
		p.StockIDsByCity[city] = a.StockItemIDs
	}
	p.CompanyIDs = companyIDs
	m.writes[productID]++
	cp := *p
	return &cp, nil
}

type memOutlets struct {
	outlets map[string]*tenant.Outlet
}

func (m *memOutlets) GetOutlet(_ context.Context, outletID string) (*tenant.Outlet, error) {
	o, ok := m.outlets[outletID]
	if !ok {
		return nil, tenant.ErrOutletNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOutlets) DeactivateOutlet(_ context.Context, outletID string) (*tenant.Outlet, error) {
	o, ok := m.outlets[outletID]
	if !ok {
		return nil, tenant.ErrOutletNotFound
	}
	o.Active = false
	cp := *o
	return &cp, nil
}

type cities map[tenant.CitySlug]bool

func (c cities) IsKnownCity(_ context.Context, slug tenant.CitySlug) bool { return c[slug] }

type countingCache struct{ bumps int }

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return nil
}
