// Package cache holds the Redis listing page cache and the in-process city directory
// kept fresh by PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"catalogue/internal/domain/catalogue"
)

// VersionKey holds the listing cache generation. Page keys embed it, so bumping it
// retires every cached page without scanning.
const VersionKey = "catalogue:version"

const (
	markRaw  byte = 'r'
	markZstd byte = 'z'
)

// PageCacheConfig configures the page cache.
type PageCacheConfig struct {
	TTL time.Duration
	// CompressThreshold is the payload size above which entries are zstd-compressed.
	CompressThreshold int
}

// PageCache stores rendered listing pages in Redis.
type PageCache struct {
	rdb       redis.UniversalClient
	ttl       time.Duration
	threshold int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

func NewPageCache(rdb redis.UniversalClient, cfg PageCacheConfig) (*PageCache, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	threshold := cfg.CompressThreshold
	if threshold <= 0 {
		threshold = 2 * 1024
	}
	return &PageCache{rdb: rdb, ttl: ttl, threshold: threshold, encoder: encoder, decoder: decoder}, nil
}

// NewRedisClient parses url and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *PageCache) Version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, VersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Bump advances the cache generation.
func (c *PageCache) Bump(ctx context.Context) error {
	return c.rdb.Incr(ctx, VersionKey).Err()
}

func (c *PageCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decode(b)
}

func (c *PageCache) Set(ctx context.Context, key string, payload []byte) error {
	return c.rdb.Set(ctx, key, c.encode(payload), c.ttl).Err()
}

func (c *PageCache) encode(payload []byte) []byte {
	if len(payload) <= c.threshold {
		return append([]byte{markRaw}, payload...)
	}
	return c.encoder.EncodeAll(payload, []byte{markZstd})
}

func (c *PageCache) decode(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty cache entry")
	}
	switch b[0] {
	case markRaw:
		return b[1:], nil
	case markZstd:
		out, err := c.decoder.DecodeAll(b[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("decompress cache entry: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown cache entry marker %q", b[0])
	}
}

var (
	_ catalogue.PageCache   = (*PageCache)(nil)
	_ catalogue.Invalidator = (*PageCache)(nil)
)
