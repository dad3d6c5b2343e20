package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"catalogue/internal/core/apperror"
	"catalogue/internal/core/id"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/pricefeed"
	"catalogue/internal/domain/stock"
	"catalogue/pkg/logger"
)

type FeedApplier interface {
	Apply(ctx context.Context, req pricefeed.Request) (pricefeed.Result, error)
}

type StockMaintainer interface {
	DeactivateOutlet(ctx context.Context, outletID string) (*stock.DeactivationResult, error)
	Recompute(ctx context.Context, productID id.ID) (*catalogue.Product, error)
}

// Dispatcher routes decoded messages to domain services.
type Dispatcher struct {
	feed  FeedApplier
	stock StockMaintainer
	log   *logger.Logger
}

func NewDispatcher(feed FeedApplier, stock StockMaintainer, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{feed: feed, stock: stock, log: log.WithComponent("queue_dispatcher")}
}

// Dispatch handles one message body. Errors wrapping ErrPoison are permanent;
// any other error leaves the message for redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, body string) error {
	env, err := ParseEnvelope(body)
	if err != nil {
		return err
	}

	switch env.Type {
	case TypePriceFeed:
		return d.priceFeed(ctx, env)
	case TypeOutletDeactivated:
		return d.outletDeactivated(ctx, env)
	case TypeRecomputeProduct:
		return d.recomputeProduct(ctx, env)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrPoison, env.Type)
	}
}

func (d *Dispatcher) priceFeed(ctx context.Context, env Envelope) error {
	// Apply validates the batch itself and tolerates bad entries.
	var req pricefeed.Request
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", ErrPoison, env.Type, err)
	}

	res, err := d.feed.Apply(ctx, req)
	if err != nil {
		return classify(err)
	}
	log := d.log.WithContext(ctx).With("matched", res.Matched, "updated", res.Updated, "failed", res.Failed)
	if !res.Success {
		// Rows already written are idempotent, but a redelivery would not fix rows
		// that lost their barcode match, so the batch is not retried.
		log.Warnw("queued feed partially applied", "message_key", res.MessageKey)
		return nil
	}
	log.Infow("queued feed applied")
	return nil
}

func (d *Dispatcher) outletDeactivated(ctx context.Context, env Envelope) error {
	var msg OutletDeactivated
	if err := decodePayload(env, &msg); err != nil {
		return err
	}
	res, err := d.stock.DeactivateOutlet(ctx, msg.OutletID)
	if err != nil {
		return classify(err)
	}
	d.log.WithContext(ctx).Infow("outlet deactivated from queue",
		"outlet_id", msg.OutletID, "archived_rows", res.ArchivedRows, "products", len(res.Products))
	return nil
}

func (d *Dispatcher) recomputeProduct(ctx context.Context, env Envelope) error {
	var msg RecomputeProduct
	if err := decodePayload(env, &msg); err != nil {
		return err
	}
	pid, err := id.Parse(msg.ProductID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPoison, err)
	}
	if _, err := d.stock.Recompute(ctx, pid); err != nil {
		return classify(err)
	}
	return nil
}

// classify marks domain errors that a retry cannot fix as poison.
func classify(err error) error {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return err
	}
	switch appErr.Code {
	case apperror.CodeValidation, apperror.CodeNotFound, apperror.CodeFeedRejected,
		apperror.CodeConflict, apperror.CodeUnknownCity:
		return fmt.Errorf("%w: %v", ErrPoison, err)
	default:
		return err
	}
}
