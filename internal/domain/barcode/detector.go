// Package barcode finds products and outlet stock rows that already declare a barcode.
//
// Checks are advisory. Nothing prevents two concurrent saves from both passing a check,
// and the document store carries no unique barcode index: outlet rows legitimately repeat
// their product's barcodes and supplier repacks share codes across products.
package barcode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"catalogue/internal/core/apperror"
	appctx "catalogue/internal/core/context"
	"catalogue/internal/core/id"
	"catalogue/internal/core/security"
	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

// MaxItems caps the collisions listed per barcode. Stores return up to LookupLimit
// hits so the detector can tell a full set from a cut one.
const (
	MaxItems    = 50
	LookupLimit = MaxItems + 1
)

// Store is the read side the detector needs. Exclusions are applied by the store
// so the subject never appears in its own results. Lookups by barcode return at
// most LookupLimit items.
type Store interface {
	FindProductsByBarcode(ctx context.Context, barcode string, excludeProductID *id.ID) ([]catalogue.Product, error)
	FindOutletStockByBarcode(ctx context.Context, outletID, barcode string, excludeStockItemID *id.ID) ([]catalogue.StockItem, error)
	GetProductsByIDs(ctx context.Context, ids []id.ID) ([]catalogue.Product, error)
}

// Collision is one product, or one outlet stock row with its product, sharing a barcode.
type Collision struct {
	ProductID   id.ID  `json:"productId"`
	ProductName string `json:"productName"`
	ProductSlug string `json:"productSlug"`
	StockItemID *id.ID `json:"stockItemId,omitempty"`
	OutletID    string `json:"outletId,omitempty"`
}

// CollisionSet lists everything besides the subject that declares Barcode.
// Truncated is set when more than MaxItems matched and only the oldest are listed.
type CollisionSet struct {
	Barcode   string      `json:"barcode"`
	Items     []Collision `json:"items"`
	Truncated bool        `json:"truncated"`
}

// OutletLookup resolves the outlet of an outlet-scoped check.
type OutletLookup interface {
	GetOutlet(ctx context.Context, outletID string) (*tenant.Outlet, error)
}

type Detector struct {
	store   Store
	outlets OutletLookup
	log     *logger.Logger
}

func NewDetector(store Store, log *logger.Logger) *Detector {
	if log == nil {
		log = logger.Default()
	}
	return &Detector{store: store, log: log.WithComponent("barcode_detector")}
}

// WithOutlets enables the company check of outlet-scoped lookups.
func (d *Detector) WithOutlets(outlets OutletLookup) *Detector {
	d.outlets = outlets
	return d
}

// FindCatalogueCollisions looks up each distinct barcode across all products.
// Barcodes without matches are omitted from the result.
func (d *Detector) FindCatalogueCollisions(ctx context.Context, barcodes []string, excludeProductID *id.ID) ([]CollisionSet, error) {
	var out []CollisionSet
	for _, code := range Normalize(barcodes) {
		products, err := d.store.FindProductsByBarcode(ctx, code, excludeProductID)
		if err != nil {
			return nil, fmt.Errorf("find products by barcode %q: %w", code, err)
		}
		if len(products) == 0 {
			continue
		}
		products, truncated := capItems(products)
		set := CollisionSet{Barcode: code, Items: make([]Collision, 0, len(products)), Truncated: truncated}
		for _, p := range products {
			set.Items = append(set.Items, Collision{ProductID: p.ID, ProductName: p.Name, ProductSlug: p.Slug})
		}
		out = append(out, set)
	}

	d.log.WithContext(ctx).Debugw("catalogue barcode check", "barcodes", len(barcodes), "collisions", len(out))
	return out, nil
}

// FindOutletCollisions looks up each distinct barcode among one outlet's stock rows
// and resolves every hit to its parent product. A company-bound operator may only
// check outlets of their company.
func (d *Detector) FindOutletCollisions(ctx context.Context, barcodes []string, outletID string, excludeStockItemID *id.ID) ([]CollisionSet, error) {
	if err := d.authorizeOutlet(ctx, outletID); err != nil {
		return nil, err
	}

	type hit struct {
		code      string
		rows      []catalogue.StockItem
		truncated bool
	}

	var (
		hits       []hit
		productIDs []id.ID
	)
	for _, code := range Normalize(barcodes) {
		rows, err := d.store.FindOutletStockByBarcode(ctx, outletID, code, excludeStockItemID)
		if err != nil {
			return nil, fmt.Errorf("find outlet stock by barcode %q: %w", code, err)
		}
		if len(rows) == 0 {
			continue
		}
		rows, truncated := capItems(rows)
		hits = append(hits, hit{code: code, rows: rows, truncated: truncated})
		for _, r := range rows {
			productIDs = append(productIDs, r.ProductID)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}

	products, err := d.store.GetProductsByIDs(ctx, id.Unique(productIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	byID := make(map[id.ID]catalogue.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]CollisionSet, 0, len(hits))
	for _, h := range hits {
		set := CollisionSet{Barcode: h.code, Items: make([]Collision, 0, len(h.rows)), Truncated: h.truncated}
		for _, r := range h.rows {
			rowID := r.ID
			c := Collision{ProductID: r.ProductID, StockItemID: &rowID, OutletID: r.OutletID}
			if p, ok := byID[r.ProductID]; ok {
				c.ProductName, c.ProductSlug = p.Name, p.Slug
			} else {
				d.log.WithContext(ctx).Warnw("stock row references missing product",
					"stock_item_id", r.ID.Hex(), "product_id", r.ProductID.Hex())
			}
			set.Items = append(set.Items, c)
		}
		out = append(out, set)
	}
	return out, nil
}

func (d *Detector) authorizeOutlet(ctx context.Context, outletID string) error {
	if d.outlets == nil || appctx.GetUser(ctx) == nil {
		return nil
	}
	outlet, err := d.outlets.GetOutlet(ctx, outletID)
	if err != nil {
		if errors.Is(err, tenant.ErrOutletNotFound) {
			return apperror.NewNotFound("outlet", outletID)
		}
		return apperror.NewUnavailable("registry", err)
	}
	if err := security.RequireCompany(ctx, outlet.CompanyID); err != nil {
		return apperror.NewForbidden("outlet belongs to another company").WithDetail("outletId", outletID)
	}
	return nil
}

func capItems[T any](items []T) ([]T, bool) {
	if len(items) > MaxItems {
		return items[:MaxItems], true
	}
	return items, false
}

// Normalize trims barcodes, drops empty ones and collapses duplicates,
// keeping first-seen order.
func Normalize(barcodes []string) []string {
	seen := make(map[string]struct{}, len(barcodes))
	out := make([]string, 0, len(barcodes))
	for _, b := range barcodes {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}
