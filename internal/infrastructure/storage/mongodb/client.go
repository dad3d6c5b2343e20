// Package mongodb implements the document store side of the catalogue:
// products, outlet stock rows and the listing aggregation runner.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"catalogue/internal/domain/catalogue"
	"catalogue/pkg/logger"
)

// Config holds document store connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Client is a connected database handle.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the store and pings the primary.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.URI).SetAppName("catalogue")
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info(ctx, "connected to mongodb", "database", cfg.Database)
	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

// Database returns the catalogue database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects with a bounded grace period.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

// AggregateOne runs pipeline and returns its first document, or nil when empty.
func (c *Client) AggregateOne(ctx context.Context, collection string, pipeline mongo.Pipeline) (bson.Raw, error) {
	return aggregateOne(ctx, c.db.Collection(collection), pipeline)
}

func aggregateOne(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) (bson.Raw, error) {
	cur, err := coll.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		return nil, cur.Err()
	}
	out := make(bson.Raw, len(cur.Current))
	copy(out, cur.Current)
	return out, nil
}

var _ catalogue.Runner = (*Client)(nil)

// EnsureIndexes creates the indexes listing, collision checks and feeds rely on.
// There is deliberately no unique barcode index.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		catalogue.ProductsCollection: {
			{Keys: bson.D{{Key: "barcodes", Value: 1}}},
			{Keys: bson.D{{Key: "categorySlugs", Value: 1}}},
			{Keys: bson.D{{Key: "optionSlugs", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "companyIds", Value: 1}}},
		},
		catalogue.StockCollection: {
			{Keys: bson.D{{Key: "outletId", Value: 1}, {Key: "barcodes", Value: 1}}},
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "archived", Value: 1}}},
			{Keys: bson.D{{Key: "outletId", Value: 1}, {Key: "archived", Value: 1}}},
		},
	}
	for coll, models := range specs {
		names, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
		logger.Debug(ctx, "indexes ensured", "collection", coll, "indexes", names)
	}
	return nil
}
