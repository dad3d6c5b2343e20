package catalogue

import (
	"context"
	"encoding/json"
	"fmt"

	"catalogue/internal/core/apperror"
	"catalogue/internal/core/tenant"
	"catalogue/internal/domain/filter"
	"catalogue/pkg/logger"
)

// PageCache stores rendered listing pages under versioned keys.
// Get returns nil, nil on a miss.
type PageCache interface {
	Version(ctx context.Context) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// Invalidator retires every cached listing page at once.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// CacheKey builds the page cache key from the cache version, scope and canonical path.
func CacheKey(version int64, scope tenant.Scope, path string) string {
	company := scope.CompanyID
	if company == "" {
		company = "-"
	}
	return fmt.Sprintf("catalogue:page:v%d:%s:%s:%s", version, company, scope.City, path)
}

// ServiceConfig configures the listing service.
type ServiceConfig struct {
	Runner Runner
	Cache  PageCache // optional
	Cities tenant.CityDirectory
	Limits Limits
	Logger *logger.Logger
}

// Service answers storefront listing requests.
type Service struct {
	builder Builder
	exec    *Executor[ProductCard]
	cache   PageCache
	cities  tenant.CityDirectory
	log     *logger.Logger
}

func NewService(cfg ServiceConfig) *Service {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	limits := cfg.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits
	}
	return &Service{
		builder: Builder{Limits: limits},
		exec:    NewExecutor[ProductCard](cfg.Runner, log),
		cache:   cfg.Cache,
		cities:  cfg.Cities,
		log:     log.WithComponent("catalogue_service"),
	}
}

// List decodes the filter path, merges query-string pagination and returns one page.
// Only a missing or unknown city is an error; backend failures produce an empty page.
func (s *Service) List(ctx context.Context, segments []string, in PaginationInput, scope tenant.Scope) (Page[ProductCard], error) {
	if scope.City == "" {
		return Page[ProductCard]{}, apperror.NewValidation("city is required")
	}
	if s.cities != nil && !s.cities.IsKnownCity(ctx, scope.City) {
		return Page[ProductCard]{}, apperror.NewUnknownCity(string(scope.City))
	}

	q := filter.Decode(segments)
	merged := MergeInput(PaginationFromQuery(q), in)
	resolved := s.builder.Limits.Resolve(merged)
	q.Page, q.Limit = resolved.Page, resolved.Limit
	q.SortBy, q.SortDirection = resolved.SortBy, resolved.SortDirection

	spec := s.builder.Build(q, scope)
	key := s.cacheKey(ctx, scope, q)

	if page, ok := s.fromCache(ctx, key); ok {
		return page, nil
	}

	page := s.exec.Execute(ctx, spec)
	if len(page.Docs) > 0 {
		s.toCache(ctx, key, page)
	}
	return page, nil
}

func (s *Service) cacheKey(ctx context.Context, scope tenant.Scope, q filter.Query) string {
	if s.cache == nil {
		return ""
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		s.log.WithContext(ctx).Warnw("page cache version unavailable", "error", err)
		return ""
	}
	return CacheKey(version, scope, filter.EncodePath(q))
}

func (s *Service) fromCache(ctx context.Context, key string) (Page[ProductCard], bool) {
	if key == "" {
		return Page[ProductCard]{}, false
	}
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.WithContext(ctx).Warnw("page cache read failed", "key", key, "error", err)
		return Page[ProductCard]{}, false
	}
	if payload == nil {
		return Page[ProductCard]{}, false
	}
	var page Page[ProductCard]
	if err := json.Unmarshal(payload, &page); err != nil {
		s.log.WithContext(ctx).Warnw("page cache entry corrupt", "key", key, "error", err)
		return Page[ProductCard]{}, false
	}
	return page, true
}

func (s *Service) toCache(ctx context.Context, key string, page Page[ProductCard]) {
	if key == "" {
		return
	}
	payload, err := json.Marshal(page)
	if err != nil {
		s.log.WithContext(ctx).Warnw("page cache encode failed", "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, payload); err != nil {
		s.log.WithContext(ctx).Warnw("page cache write failed", "key", key, "error", err)
	}
}
