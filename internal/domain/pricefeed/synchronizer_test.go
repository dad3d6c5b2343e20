package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogue/internal/core/apperror"
	"catalogue/internal/core/id"
	"catalogue/internal/core/tenant"
	"catalogue/internal/core/types"
	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

type fakeOutlets struct {
	outlets map[string]*tenant.Outlet
	calls   int
}

func (f *fakeOutlets) ResolveOutletByToken(_ context.Context, token string) (*tenant.Outlet, error) {
	f.calls++
	o, ok := f.outlets[token]
	if !ok {
		return nil, tenant.ErrOutletNotFound
	}
	return o, nil
}

type memCatalogue struct {
	mu       sync.Mutex
	products []catalogue.Product
	rows     map[id.ID]*catalogue.StockItem
	failRow  map[id.ID]bool
	reads    int
}

func (m *memCatalogue) FindProductIDsByBarcodes(_ context.Context, codes []string) ([]id.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []id.ID
	for _, p := range m.products {
		for _, c := range codes {
			if slices.Contains(p.Barcodes, c) {
				out = append(out, p.ID)
				break
			}
		}
	}
	return out, nil
}

func (m *memCatalogue) FindOutletRows(_ context.Context, outletID string, productIDs []id.ID, codes []string) ([]catalogue.StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []catalogue.StockItem
	for _, r := range m.rows {
		if r.OutletID != outletID || r.Archived || !slices.Contains(productIDs, r.ProductID) {
			continue
		}
		for _, c := range codes {
			if slices.Contains(r.Barcodes, c) {
				out = append(out, *r)
				break
			}
		}
	}
	return out, nil
}

func (m *memCatalogue) UpdatePrice(_ context.Context, rowID id.ID, upd PriceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRow[rowID] {
		return errors.New("write conflict")
	}
	r, ok := m.rows[rowID]
	if !ok {
		return catalogue.ErrStockItemNotFound
	}
	r.Available = upd.Available
	if !upd.PriceChanged {
		return nil
	}
	r.Price = upd.Price
	r.OldPrice = upd.OldPrice
	r.DiscountedPercent = upd.DiscountedPercent
	return nil
}

type recordingRecomputer struct {
	mu  sync.Mutex
	ids []id.ID
}

func (r *recordingRecomputer) RecomputeMany(_ context.Context, ids []id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id.Unique(ids)...)
	return nil
}

type fixture struct {
	outlet *tenant.Outlet
	store  *memCatalogue
	rec    *recordingRecomputer
	sync   *Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	policy, err := NewMarkdownPolicy(logger.Nop())
	require.NoError(t, err)

	outlet := &tenant.Outlet{ID: "o1", City: "msk", Active: true}
	store := &memCatalogue{rows: map[id.ID]*catalogue.StockItem{}, failRow: map[id.ID]bool{}}
	rec := &recordingRecomputer{}
	s := NewSynchronizer(Config{
		Outlets:     &fakeOutlets{outlets: map[string]*tenant.Outlet{"tok": outlet}},
		Products:    store,
		Stock:       store,
		Recomputer:  rec,
		Policy:      policy,
		Concurrency: 2,
		Logger:      logger.Nop(),
	})
	return &fixture{outlet: outlet, store: store, rec: rec, sync: s}
}

func (f *fixture) addProduct(code string, price types.MinorUnits, withRow bool) (catalogue.Product, *catalogue.StockItem) {
	p := catalogue.Product{ID: id.New(), Barcodes: []string{code}}
	f.store.products = append(f.store.products, p)
	if !withRow {
		return p, nil
	}
	r := &catalogue.StockItem{ID: id.New(), ProductID: p.ID, OutletID: f.outlet.ID, Barcodes: []string{code}, Price: price}
	f.store.rows[r.ID] = r
	return p, r
}

func entry(code string, major int64, available int64) Entry {
	price := decimal.NewFromInt(major)
	return Entry{Barcodes: []string{code}, Price: &price, Available: available}
}

func TestApplyFeed_PriceHistory(t *testing.T) {
	f := newFixture(t)
	_, row := f.addProduct("100", types.FromMajor(100), true)
	ctx := context.Background()

	res, err := f.sync.ApplyFeed(ctx, "tok", []Entry{entry("100", 80, 5)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, KeySuccess, res.MessageKey)
	assert.Equal(t, types.FromMajor(80), row.Price)
	require.NotNil(t, row.OldPrice)
	assert.Equal(t, types.FromMajor(100), *row.OldPrice)
	assert.Equal(t, 20, row.DiscountedPercent)
	assert.Equal(t, int64(5), row.Available)

	res, err = f.sync.ApplyFeed(ctx, "tok", []Entry{entry("100", 120, 4)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, types.FromMajor(120), row.Price)
	assert.Nil(t, row.OldPrice)
	assert.Zero(t, row.DiscountedPercent)
}

func TestApplyFeed_SamePriceOnlyTouchesAvailability(t *testing.T) {
	f := newFixture(t)
	_, row := f.addProduct("1", types.FromMajor(80), true)
	old := types.FromMajor(100)
	row.OldPrice = &old
	row.DiscountedPercent = 20

	res, err := f.sync.ApplyFeed(context.Background(), "tok", []Entry{entry("1", 80, 0)})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, &old, row.OldPrice)
	assert.Equal(t, 20, row.DiscountedPercent)
	assert.Zero(t, row.Available)
}

func TestApplyFeed_PartialBatchIsFailure(t *testing.T) {
	f := newFixture(t)
	var entries []Entry
	var rows []*catalogue.StockItem
	for i, code := range []string{"a1", "a2", "a3", "a4"} {
		_, r := f.addProduct(code, types.FromMajor(int64(10+i)), true)
		rows = append(rows, r)
		entries = append(entries, entry(code, 9, 1))
	}
	f.addProduct("a5", 0, false)
	entries = append(entries, entry("a5", 9, 1))

	res, err := f.sync.ApplyFeed(context.Background(), "tok", entries)
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 5, res.Matched)
	assert.Equal(t, 4, res.Updated)
	assert.Equal(t, KeyPartial, res.MessageKey)
	for _, r := range rows {
		assert.Equal(t, types.FromMajor(9), r.Price)
	}
	assert.Len(t, f.rec.ids, 4)

	appErr, ok := apperror.AsAppError(res.Err())
	require.True(t, ok)
	assert.Equal(t, apperror.CodePartialApplication, appErr.Code)
}

func TestApplyFeed_UnmatchedBarcodeIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.addProduct("known", types.FromMajor(10), true)

	res, err := f.sync.ApplyFeed(context.Background(), "tok", []Entry{entry("known", 10, 1), entry("stranger", 5, 1)})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Skipped)
}

func TestApplyFeed_FailedRowWriteIsFailure(t *testing.T) {
	f := newFixture(t)
	_, row := f.addProduct("x", types.FromMajor(10), true)
	f.store.failRow[row.ID] = true

	res, err := f.sync.ApplyFeed(context.Background(), "tok", []Entry{entry("x", 8, 1)})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Matched)
	assert.Zero(t, res.Updated)
	assert.Empty(t, f.rec.ids)
}

func TestApplyFeed_UnknownTokenRejectedBeforeReads(t *testing.T) {
	f := newFixture(t)
	f.addProduct("x", types.FromMajor(10), true)

	res, err := f.sync.ApplyFeed(context.Background(), "nope", []Entry{entry("x", 8, 1)})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeFeedRejected, appErr.Code)
	assert.False(t, res.Success)
	assert.Equal(t, KeyUnknownOutlet, res.MessageKey)
	assert.Zero(t, f.store.reads)
}

func TestApply_RejectsMissingEnvelopeFields(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"no token", Request{APIVersion: "1", SystemVersion: "pos-2"}},
		{"no api version", Request{Token: "tok", SystemVersion: "pos-2"}},
		{"no system version", Request{Token: "tok", APIVersion: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.sync.Apply(context.Background(), tt.req)
			require.Error(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, KeyRejected, res.MessageKey)
		})
	}
	assert.Zero(t, f.store.reads)
}

func TestApply_InvalidEntriesDoNotRejectBatch(t *testing.T) {
	f := newFixture(t)
	f.addProduct("ok", types.FromMajor(10), true)

	res, err := f.sync.Apply(context.Background(), Request{
		Token: "tok", APIVersion: "1", SystemVersion: "pos",
		Entries: []Entry{entry("ok", 7, 1), {Barcodes: nil, Price: entry("x", 1, 0).Price}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
}

func TestApply_EntryWithoutPriceLeavesRowUnchanged(t *testing.T) {
	f := newFixture(t)
	_, row := f.addProduct("100", types.FromMajor(100), true)
	row.Available = 7

	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{
		"token": "tok", "apiVersion": "1", "systemVersion": "pos",
		"entries": [
			{"barcode": ["100"], "available": 3},
			{"barcode": ["100"], "price": null, "available": 4}
		]
	}`), &req))

	res, err := f.sync.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Matched)
	assert.Equal(t, types.FromMajor(100), row.Price)
	assert.Nil(t, row.OldPrice)
	assert.Zero(t, row.DiscountedPercent)
	assert.Equal(t, int64(7), row.Available)
	assert.Empty(t, f.rec.ids)
}

func TestApplyFeed_OutletPolicy(t *testing.T) {
	f := newFixture(t)
	expr := "next * 10 < current * 9"
	f.outlet.MarkdownPolicy = &expr
	_, row := f.addProduct("p", types.FromMajor(100), true)

	_, err := f.sync.ApplyFeed(context.Background(), "tok", []Entry{entry("p", 95, 1)})
	require.NoError(t, err)
	assert.Nil(t, row.OldPrice, "drop below the outlet threshold is not a markdown")

	_, err = f.sync.ApplyFeed(context.Background(), "tok", []Entry{entry("p", 50, 1)})
	require.NoError(t, err)
	require.NotNil(t, row.OldPrice)
	assert.Equal(t, types.FromMajor(95), *row.OldPrice)
	assert.Equal(t, 47, row.DiscountedPercent)
}
