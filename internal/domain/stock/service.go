package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalogue/internal/core/apperror"
	appctx "catalogue/internal/core/context"
	"catalogue/internal/core/id"
	"catalogue/internal/core/security"
	"catalogue/internal/core/tenant"
	"catalogue/internal/core/types"
	"catalogue/internal/domain/barcode"
	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

// OutletRegistry is the part of the tenant registry stock mutations need.
type OutletRegistry interface {
	GetOutlet(ctx context.Context, outletID string) (*tenant.Outlet, error)
	DeactivateOutlet(ctx context.Context, outletID string) (*tenant.Outlet, error)
}

// AdmitInput admits a product to an outlet's stock.
// Empty Barcodes inherit the product's barcodes.
type AdmitInput struct {
	ProductID id.ID
	OutletID  string
	Price     types.MinorUnits
	Available int64
	Barcodes  []string
}

// DeactivationResult summarises an outlet deactivation.
type DeactivationResult struct {
	Outlet       *tenant.Outlet
	ArchivedRows int64
	Products     []id.ID
}

// Service applies CMS stock mutations. Every mutation recomputes each affected
// product exactly once.
type Service struct {
	agg      *Aggregator
	stock    StockStore
	products ProductStore
	outlets  OutletRegistry
	cities   tenant.CityDirectory
	log      *logger.Logger
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Aggregator *Aggregator
	Stock      StockStore
	Products   ProductStore
	Outlets    OutletRegistry
	Cities     tenant.CityDirectory
	Logger     *logger.Logger
}

func NewService(cfg ServiceConfig) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		agg:      cfg.Aggregator,
		stock:    cfg.Stock,
		products: cfg.Products,
		outlets:  cfg.Outlets,
		cities:   cfg.Cities,
		log:      log.WithComponent("stock_service"),
	}
}

// Admit creates a stock row for an active outlet and recomputes the product.
func (s *Service) Admit(ctx context.Context, in AdmitInput) (*catalogue.StockItem, error) {
	if in.Price < 0 {
		return nil, apperror.NewValidation("price must not be negative").WithDetail("field", "price")
	}
	if in.Available < 0 {
		return nil, apperror.NewValidation("available must not be negative").WithDetail("field", "available")
	}

	outlet, err := s.outlets.GetOutlet(ctx, in.OutletID)
	if err != nil {
		return nil, mapOutletErr(err, in.OutletID)
	}
	if err := authorizeOutlet(ctx, outlet); err != nil {
		return nil, err
	}
	if !outlet.Active {
		return nil, apperror.NewConflict("outlet is not active").WithDetail("outletId", outlet.ID)
	}
	if s.cities != nil && !s.cities.IsKnownCity(ctx, outlet.City) {
		return nil, apperror.NewUnknownCity(string(outlet.City))
	}

	product, err := s.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, mapProductErr(err, in.ProductID)
	}

	codes := barcode.Normalize(in.Barcodes)
	if len(codes) == 0 {
		codes = barcode.Normalize(product.Barcodes)
	}

	now := time.Now().UTC()
	item := &catalogue.StockItem{
		ID:        id.New(),
		ProductID: product.ID,
		OutletID:  outlet.ID,
		CompanyID: outlet.CompanyID,
		City:      outlet.City,
		Barcodes:  codes,
		Price:     in.Price,
		Available: in.Available,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.stock.Insert(ctx, item); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("insert stock item: %w", err))
	}

	if _, err := s.agg.Recompute(ctx, product.ID); err != nil {
		return nil, apperror.NewInternal(err)
	}

	s.log.WithContext(ctx).Infow("stock admitted",
		"stock_item_id", item.ID.Hex(), "product_id", product.ID.Hex(), "outlet_id", outlet.ID)
	return item, nil
}

// Archive withdraws a stock row and recomputes its product.
func (s *Service) Archive(ctx context.Context, stockItemID id.ID) (*catalogue.StockItem, error) {
	item, err := s.stock.Archive(ctx, stockItemID)
	if err != nil {
		if errors.Is(err, catalogue.ErrStockItemNotFound) {
			return nil, apperror.NewNotFound("stock item", stockItemID.Hex())
		}
		return nil, apperror.NewInternal(fmt.Errorf("archive stock item: %w", err))
	}

	if _, err := s.agg.Recompute(ctx, item.ProductID); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return item, nil
}

// DeactivateOutlet deactivates the outlet, archives all its rows and recomputes
// every affected product once.
func (s *Service) DeactivateOutlet(ctx context.Context, outletID string) (*DeactivationResult, error) {
	if appctx.GetUser(ctx) != nil {
		current, err := s.outlets.GetOutlet(ctx, outletID)
		if err != nil {
			return nil, mapOutletErr(err, outletID)
		}
		if err := authorizeOutlet(ctx, current); err != nil {
			return nil, err
		}
	}

	outlet, err := s.outlets.DeactivateOutlet(ctx, outletID)
	if err != nil {
		return nil, mapOutletErr(err, outletID)
	}

	archived, productIDs, err := s.stock.ArchiveByOutlet(ctx, outlet.ID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("archive outlet stock: %w", err))
	}

	productIDs = id.Unique(productIDs)
	if err := s.agg.RecomputeMany(ctx, productIDs); err != nil {
		return nil, apperror.NewInternal(err)
	}

	s.log.WithContext(ctx).Infow("outlet deactivated",
		"outlet_id", outlet.ID, "archived_rows", archived, "products", len(productIDs))
	return &DeactivationResult{Outlet: outlet, ArchivedRows: archived, Products: productIDs}, nil
}

// Recompute rebuilds one product's aggregates on demand.
func (s *Service) Recompute(ctx context.Context, productID id.ID) (*catalogue.Product, error) {
	p, err := s.agg.Recompute(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err, productID)
	}
	return p, nil
}

// authorizeOutlet keeps company-bound operators to their own outlets. Queue and
// maintenance callers carry no operator and are not restricted.
func authorizeOutlet(ctx context.Context, outlet *tenant.Outlet) error {
	if err := security.RequireCompany(ctx, outlet.CompanyID); err != nil {
		return apperror.NewForbidden("outlet belongs to another company").WithDetail("outletId", outlet.ID)
	}
	return nil
}

func mapOutletErr(err error, outletID string) error {
	if errors.Is(err, tenant.ErrOutletNotFound) {
		return apperror.NewNotFound("outlet", outletID)
	}
	return apperror.NewUnavailable("registry", err)
}

func mapProductErr(err error, productID id.ID) error {
	if errors.Is(err, catalogue.ErrProductNotFound) {
		return apperror.NewNotFound("product", productID.Hex())
	}
	return apperror.NewInternal(err)
}
