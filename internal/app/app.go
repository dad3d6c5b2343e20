// Package app wires the stores and services shared by the server and the worker.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/barcode"
	"catalogue/internal/domain/catalogue"
	"catalogue/internal/domain/pricefeed"
	"catalogue/internal/domain/stock"
	"catalogue/internal/infrastructure/cache"
	"catalogue/internal/infrastructure/http/v1/handlers"
	"catalogue/internal/infrastructure/storage/mongodb"
	"catalogue/internal/infrastructure/storage/postgres"
	"catalogue/pkg/logger"
)

// Config is read from the environment by the binaries.
type Config struct {
	MongoURI      string
	MongoDatabase string
	MongoMaxPool  uint64

	RegistryDSN      string
	RegistryMaxConns int32

	// RedisURL is optional; without it listings are not cached.
	RedisURL            string
	PageCacheTTL        time.Duration
	PageCacheCompressAt int

	FeedConcurrency int
	Limits          catalogue.Limits
}

// App holds the connected stores and the services built on them.
type App struct {
	Mongo    *mongodb.Client
	Registry *postgres.Pool
	Redis    *redis.Client
	Cities   *cache.CityDirectory

	Outlets    *tenant.PostgresRegistry
	Catalogue  *catalogue.Service
	Barcodes   *barcode.Detector
	Aggregator *stock.Aggregator
	Stock      *stock.Service
	Feed       *pricefeed.Synchronizer

	log *logger.Logger
}

// New connects every store and builds the services. The city directory is
// started; Close stops it and releases the connections.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	a := &App{log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	a.Mongo, err = mongodb.Connect(ctx, mongodb.Config{
		URI:         cfg.MongoURI,
		Database:    cfg.MongoDatabase,
		MaxPoolSize: cfg.MongoMaxPool,
	})
	if err != nil {
		return nil, err
	}
	if err := a.Mongo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.RegistryDSN)
	if cfg.RegistryMaxConns > 0 {
		poolCfg.MaxConns = cfg.RegistryMaxConns
	}
	a.Registry, err = postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	a.Outlets = tenant.NewPostgresRegistry(postgres.NewTxManager(a.Registry))

	var pages *cache.PageCache
	if cfg.RedisURL != "" {
		a.Redis, err = cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		pages, err = cache.NewPageCache(a.Redis, cache.PageCacheConfig{
			TTL:               cfg.PageCacheTTL,
			CompressThreshold: cfg.PageCacheCompressAt,
		})
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("REDIS_URL not set, listing cache disabled")
	}

	a.Cities = cache.NewCityDirectory(a.Registry.Pool, a.Outlets, log)
	if err := a.Cities.Start(ctx); err != nil {
		return nil, err
	}

	products := mongodb.NewProductRepo(a.Mongo.Database())
	stockRows := mongodb.NewStockRepo(a.Mongo.Database())

	// A nil *PageCache must not become a non-nil interface.
	var invalidator catalogue.Invalidator
	var pageCache catalogue.PageCache
	if pages != nil {
		invalidator, pageCache = pages, pages
	}

	a.Aggregator = stock.NewAggregator(stock.AggregatorConfig{
		Stock:    stockRows,
		Products: products,
		Cities:   a.Cities,
		Cache:    invalidator,
		Logger:   log,
	})
	a.Stock = stock.NewService(stock.ServiceConfig{
		Aggregator: a.Aggregator,
		Stock:      stockRows,
		Products:   products,
		Outlets:    a.Outlets,
		Cities:     a.Cities,
		Logger:     log,
	})

	policy, err := pricefeed.NewMarkdownPolicy(log)
	if err != nil {
		return nil, fmt.Errorf("markdown policy: %w", err)
	}
	a.Feed = pricefeed.NewSynchronizer(pricefeed.Config{
		Outlets:     a.Outlets,
		Products:    products,
		Stock:       stockRows,
		Recomputer:  a.Aggregator,
		Policy:      policy,
		Concurrency: cfg.FeedConcurrency,
		Logger:      log,
	})

	a.Catalogue = catalogue.NewService(catalogue.ServiceConfig{
		Runner: a.Mongo,
		Cache:  pageCache,
		Cities: a.Cities,
		Limits: cfg.Limits,
		Logger: log,
	})
	a.Barcodes = barcode.NewDetector(mongodb.NewStore(a.Mongo.Database()), log).WithOutlets(a.Outlets)

	ok = true
	return a, nil
}

// HealthChecks returns the readiness probes of the connected stores.
func (a *App) HealthChecks() map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{
		"mongodb":  handlers.PingFunc(a.Mongo.Ping),
		"registry": handlers.PingFunc(a.Registry.Ping),
	}
	if a.Redis != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

// HealthInfo reports registry pool usage and the number of known cities.
func (a *App) HealthInfo() map[string]any {
	return map[string]any{
		"registryPool": a.Registry.Stats(),
		"cities":       len(a.Cities.Cities()),
	}
}

// Close stops the city directory and closes every connection that was opened.
func (a *App) Close() {
	if a.Cities != nil {
		a.Cities.Stop()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warnw("failed to close redis client", "error", err)
		}
	}
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.Mongo != nil {
		if err := a.Mongo.Close(); err != nil {
			a.log.Warnw("failed to disconnect mongodb", "error", err)
		}
	}
}
