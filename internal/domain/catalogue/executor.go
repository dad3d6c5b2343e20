package catalogue

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"catalogue/pkg/logger"
)

var tracer = otel.Tracer("catalogue/listing")

// Runner executes an aggregation and returns its first result document,
// or nil when the pipeline produced none.
type Runner interface {
	AggregateOne(ctx context.Context, collection string, pipeline mongo.Pipeline) (bson.Raw, error)
}

type facetOutput[T any] struct {
	Docs            []T   `bson:"docs"`
	TotalDocs       int64 `bson:"totalDocs"`
	TotalActiveDocs int64 `bson:"totalActiveDocs"`
}

// Executor runs listing specs. Docs and totals come from a single aggregation,
// so a page never pairs data with a count taken at another moment.
type Executor[T any] struct {
	runner Runner
	log    *logger.Logger
}

func NewExecutor[T any](runner Runner, log *logger.Logger) *Executor[T] {
	if log == nil {
		log = logger.Default()
	}
	return &Executor[T]{runner: runner, log: log.WithComponent("listing_executor")}
}

// Execute never fails: backend errors and empty facet output yield EmptyPage.
func (e *Executor[T]) Execute(ctx context.Context, spec QuerySpec) Page[T] {
	ctx, span := tracer.Start(ctx, "catalogue.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", spec.Collection),
		attribute.Int("page", spec.Pagination.Page),
		attribute.Int("limit", spec.Pagination.Limit),
	)

	out, err := e.run(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.WithContext(ctx).Errorw("listing query failed, returning empty page",
			"collection", spec.Collection,
			"page", spec.Pagination.Page,
			"error", err,
		)
		return EmptyPage[T](spec.Pagination)
	}
	if out == nil {
		e.log.WithContext(ctx).Debugw("listing facet produced no document", "collection", spec.Collection)
		return EmptyPage[T](spec.Pagination)
	}

	span.SetAttributes(attribute.Int64("total_docs", out.TotalDocs))
	return NewPage(out.Docs, spec.Pagination, out.TotalDocs, out.TotalActiveDocs)
}

func (e *Executor[T]) run(ctx context.Context, spec QuerySpec) (*facetOutput[T], error) {
	raw, err := e.runner.AggregateOne(ctx, spec.Collection, spec.Pipeline())
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", spec.Collection, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out facetOutput[T]
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode facet output: %w", err)
	}
	return &out, nil
}
