package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/videoannot/ingestworker/internal/domain/model"
	"github.com/videoannot/ingestworker/internal/domain/repository"
	"github.com/videoannot/ingestworker/internal/infrastructure/cache"
	"github.com/videoannot/ingestworker/internal/infrastructure/metrics"
)

// CachedCatalogToolConfig holds configuration for CachedCatalogTool.
type CachedCatalogToolConfig struct {
	// CacheTTL is the TTL for cached query_fine_units results.
	CacheTTL time.Duration
}

// DefaultCachedCatalogToolConfig returns the default configuration.
func DefaultCachedCatalogToolConfig() CachedCatalogToolConfig {
	return CachedCatalogToolConfig{CacheTTL: 5 * time.Minute}
}

// CachedCatalogTool wraps CatalogTool's query_fine_units with a cache-aside
// lookup, coalescing concurrent identical lookups via singleflight so a
// burst of segments asking about the same lemma doesn't stampede Postgres.
// create_fine_unit passes straight through and invalidates the lookup key
// it would otherwise have answered, so the next query sees the new row.
type CachedCatalogTool struct {
	delegate *CatalogTool
	cache    cache.CatalogCache
	sfGroup  singleflight.Group
	cacheTTL time.Duration
}

func NewCachedCatalogTool(delegate *CatalogTool, catalogCache cache.CatalogCache, cfg CachedCatalogToolConfig) *CachedCatalogTool {
	return &CachedCatalogTool{delegate: delegate, cache: catalogCache, cacheTTL: cfg.CacheTTL}
}

func (t *CachedCatalogTool) ToolDefinitions() []repository.Tool {
	return t.delegate.ToolDefinitions()
}

// QueryFineUnits answers from cache when possible, coalescing concurrent
// identical lookups via singleflight.
func (t *CachedCatalogTool) QueryFineUnits(ctx context.Context, lemma string, kind model.FineUnitKind, pos, lang string) (*CatalogQueryResult, error) {
	key := t.buildKey(lemma, kind, pos, lang)

	result, err, shared := t.sfGroup.Do(key, func() (any, error) {
		return t.queryWithCache(ctx, key, lemma, kind, pos, lang)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return nil, err
	}
	return result.(*CatalogQueryResult), nil
}

func (t *CachedCatalogTool) queryWithCache(ctx context.Context, key, lemma string, kind model.FineUnitKind, pos, lang string) (*CatalogQueryResult, error) {
	units, err := t.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("catalog cache get failed, falling back to database", "key", key, "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
	}

	if units != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeRedis).Inc()
		return &CatalogQueryResult{Candidates: units, Found: len(units) > 0, Lemma: lemma, Kind: kind, POS: pos, Lang: lang}, nil
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeRedis).Inc()

	result, err := t.delegate.QueryFineUnits(ctx, lemma, kind, pos, lang)
	if err != nil {
		return nil, err
	}

	if err := t.cache.Set(ctx, key, result.Candidates, t.cacheTTL); err != nil {
		slog.Warn("failed to cache catalog lookup", "key", key, "error", err)
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
	} else {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
	}

	return result, nil
}

// CreateFineUnit delegates directly, then invalidates the lookup key the
// new row would answer so the next query_fine_units call sees it.
func (t *CachedCatalogTool) CreateFineUnit(ctx context.Context, lemma string, kind model.FineUnitKind, pos, definition, lang, videoUID string) (*model.FineUnit, error) {
	unit, err := t.delegate.CreateFineUnit(ctx, lemma, kind, pos, definition, lang, videoUID)
	if err != nil {
		return nil, err
	}

	key := t.buildKey(lemma, kind, pos, lang)
	if err := t.cache.Delete(ctx, key); err != nil {
		slog.Warn("failed to invalidate catalog cache after create", "key", key, "error", err)
	}
	return unit, nil
}

func (t *CachedCatalogTool) buildKey(lemma string, kind model.FineUnitKind, pos, lang string) string {
	return fmt.Sprintf("%s:%s:%s:%s", kind, strings.ToLower(lemma), pos, strings.ToLower(lang))
}
