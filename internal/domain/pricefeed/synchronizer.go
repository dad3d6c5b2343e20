package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"catalogue/internal/core/apperror"
	"catalogue/internal/core/id"
	"catalogue/internal/core/tenant"
	"catalogue/internal/core/types"
	"catalogue/internal/domain/barcode"
	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

var tracer = otel.Tracer("catalogue/pricefeed")

// DefaultConcurrency bounds how many entries are applied at once.
const DefaultConcurrency = 8

// OutletResolver resolves the submitting outlet from its access token.
type OutletResolver interface {
	ResolveOutletByToken(ctx context.Context, token string) (*tenant.Outlet, error)
}

// ProductFinder finds catalogue products whose barcode set intersects barcodes.
type ProductFinder interface {
	FindProductIDsByBarcodes(ctx context.Context, barcodes []string) ([]id.ID, error)
}

// StockWriter finds and updates one outlet's stock rows.
type StockWriter interface {
	// FindOutletRows returns live rows of the outlet that belong to one of productIDs
	// and share at least one of barcodes.
	FindOutletRows(ctx context.Context, outletID string, productIDs []id.ID, barcodes []string) ([]catalogue.StockItem, error)
	UpdatePrice(ctx context.Context, stockItemID id.ID, upd PriceUpdate) error
}

// Recomputer rebuilds aggregates of the given products once each.
type Recomputer interface {
	RecomputeMany(ctx context.Context, productIDs []id.ID) error
}

// PriceUpdate is the change applied to one stock row.
// When PriceChanged is false only Available is written.
// A nil OldPrice on a changed price clears any recorded oldPrice.
type PriceUpdate struct {
	Price             types.MinorUnits
	Available         int64
	PriceChanged      bool
	OldPrice          *types.MinorUnits
	DiscountedPercent int
}

// Result is the single outcome reported for a batch.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	MessageKey string `json:"messageKey"`
	Matched    int    `json:"matched"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// Err converts a failed result into the matching AppError, nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return apperror.NewPartialApplication(r.Matched, r.Updated).WithDetail("messageKey", r.MessageKey)
}

// Config wires a Synchronizer. Recomputer and Messages are optional.
type Config struct {
	Outlets     OutletResolver
	Products    ProductFinder
	Stock       StockWriter
	Recomputer  Recomputer
	Policy      *MarkdownPolicy
	Messages    MessageLookup
	Concurrency int
	Logger      *logger.Logger
}

// Synchronizer applies feeds. Entries of one batch run concurrently and independently;
// the caller receives one aggregate result after all of them finish.
type Synchronizer struct {
	outlets     OutletResolver
	products    ProductFinder
	stock       StockWriter
	recomputer  Recomputer
	policy      *MarkdownPolicy
	messages    MessageLookup
	concurrency int
	log         *logger.Logger
}

func NewSynchronizer(cfg Config) *Synchronizer {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	msgs := cfg.Messages
	if msgs == nil {
		msgs = Messages
	}
	n := cfg.Concurrency
	if n < 1 {
		n = DefaultConcurrency
	}
	return &Synchronizer{
		outlets:     cfg.Outlets,
		products:    cfg.Products,
		stock:       cfg.Stock,
		recomputer:  cfg.Recomputer,
		policy:      cfg.Policy,
		messages:    msgs,
		concurrency: n,
		log:         log.WithComponent("price_feed"),
	}
}

// Apply validates the envelope and applies the batch.
func (s *Synchronizer) Apply(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		var entryErrs *EntryErrors
		if !errors.As(err, &entryErrs) {
			return s.rejected(KeyRejected), apperror.NewFeedRejected(err.Error())
		}
		s.log.WithContext(ctx).Warnw("feed contains invalid entries", "count", len(entryErrs.Errors))
	}
	return s.ApplyFeed(ctx, req.Token, req.Entries)
}

// ApplyFeed applies entries on behalf of the outlet owning token.
// An unresolved token rejects the batch before anything is read.
// Partial application is reported through Result, not through the error.
func (s *Synchronizer) ApplyFeed(ctx context.Context, token string, entries []Entry) (Result, error) {
	ctx, span := tracer.Start(ctx, "pricefeed.ApplyFeed")
	defer span.End()

	if token == "" {
		return s.rejected(KeyRejected), apperror.NewFeedRejected("token is required")
	}
	outlet, err := s.outlets.ResolveOutletByToken(ctx, token)
	if err != nil {
		if errors.Is(err, tenant.ErrOutletNotFound) || errors.Is(err, tenant.ErrOutletNotActive) {
			return s.rejected(KeyUnknownOutlet), apperror.NewFeedRejected(s.messages.Message(KeyUnknownOutlet)).WithCause(err)
		}
		return s.rejected(KeyRejected), apperror.NewUnavailable("registry", err)
	}
	ctx = tenant.WithOutlet(ctx, outlet)
	log := s.log.WithContext(ctx).With("outlet_id", outlet.ID)
	span.SetAttributes(attribute.String("outlet_id", outlet.ID), attribute.Int("entries", len(entries)))

	var (
		mu      sync.Mutex
		res     Result
		touched []id.ID
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range entries {
		entry := entries[i]
		g.Go(func() error {
			out := s.applyEntry(gctx, outlet, entry)
			mu.Lock()
			defer mu.Unlock()
			res.Matched += out.matched
			res.Updated += out.updated
			if out.skipped {
				res.Skipped++
			}
			if out.failed {
				res.Failed++
			}
			touched = append(touched, out.touched...)
			return nil
		})
	}
	_ = g.Wait()

	if s.recomputer != nil && len(touched) > 0 {
		if err := s.recomputer.RecomputeMany(ctx, touched); err != nil {
			log.Errorw("recompute after feed failed", "error", err)
		}
	}

	res.Success = res.Failed == 0 && res.Updated == res.Matched
	res.MessageKey = KeySuccess
	if !res.Success {
		res.MessageKey = KeyPartial
	}
	res.Message = s.messages.Message(res.MessageKey)
	if !res.Success {
		res.Message = fmt.Sprintf("%s (%d of %d)", res.Message, res.Updated, res.Matched)
	}

	span.SetAttributes(
		attribute.Int("matched", res.Matched),
		attribute.Int("updated", res.Updated),
		attribute.Bool("success", res.Success),
	)
	log.Infow("feed applied",
		"entries", len(entries),
		"matched", res.Matched,
		"updated", res.Updated,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"success", res.Success,
	)
	return res, nil
}

type entryOutcome struct {
	matched int
	updated int
	skipped bool
	failed  bool
	touched []id.ID
}

// applyEntry counts each matched product once; a product is updated when it has at
// least one outlet row and every one of its rows was written.
func (s *Synchronizer) applyEntry(ctx context.Context, outlet *tenant.Outlet, e Entry) entryOutcome {
	log := s.log.WithContext(ctx).With("outlet_id", outlet.ID)

	codes := barcode.Normalize(e.Barcodes)
	if len(codes) == 0 || e.Price == nil || e.Price.IsNegative() || e.Available < 0 {
		log.Debugw("feed entry skipped as invalid", "barcodes", e.Barcodes, "has_price", e.Price != nil)
		return entryOutcome{skipped: true}
	}
	price := types.FromMoney(*e.Price)

	productIDs, err := s.products.FindProductIDsByBarcodes(ctx, codes)
	if err != nil {
		log.Errorw("feed product lookup failed", "barcodes", codes, "error", err)
		return entryOutcome{failed: true}
	}
	productIDs = id.Unique(productIDs)
	if len(productIDs) == 0 {
		return entryOutcome{skipped: true}
	}

	rows, err := s.stock.FindOutletRows(ctx, outlet.ID, productIDs, codes)
	if err != nil {
		log.Errorw("feed stock lookup failed", "barcodes", codes, "error", err)
		return entryOutcome{matched: len(productIDs), failed: true}
	}

	byProduct := make(map[id.ID][]catalogue.StockItem, len(productIDs))
	for _, r := range rows {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}

	out := entryOutcome{matched: len(productIDs)}
	for _, pid := range productIDs {
		productRows := byProduct[pid]
		if len(productRows) == 0 {
			log.Debugw("feed entry has no stock row", "product_id", pid.Hex(), "barcodes", codes)
			continue
		}
		written := 0
		for _, r := range productRows {
			upd := s.priceUpdate(ctx, outlet, r, price, e.Available)
			if err := s.stock.UpdatePrice(ctx, r.ID, upd); err != nil {
				log.Errorw("feed row update failed", "stock_item_id", r.ID.Hex(), "error", err)
				continue
			}
			written++
		}
		if written > 0 {
			out.touched = append(out.touched, pid)
		}
		if written == len(productRows) {
			out.updated++
		}
	}
	return out
}

// priceUpdate applies the markdown-only history rule: a markdown records the current
// price as oldPrice, any other change clears it.
func (s *Synchronizer) priceUpdate(ctx context.Context, outlet *tenant.Outlet, row catalogue.StockItem, price types.MinorUnits, available int64) PriceUpdate {
	upd := PriceUpdate{Price: price, Available: available}
	if price == row.Price {
		return upd
	}
	upd.PriceChanged = true

	markdown := price < row.Price
	if s.policy != nil {
		markdown = s.policy.IsMarkdown(ctx, outlet.Policy(), row.Price, price)
	}
	if markdown {
		old := row.Price
		upd.OldPrice = &old
		upd.DiscountedPercent = types.DiscountPercent(old, price)
	}
	return upd
}

func (s *Synchronizer) rejected(key string) Result {
	return Result{Success: false, MessageKey: key, Message: s.messages.Message(key)}
}
