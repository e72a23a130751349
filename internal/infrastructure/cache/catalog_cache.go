package cache

import (
	"context"
	"time"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

// CatalogCache defines the interface for caching query_fine_units results.
// Implementations should handle serialization/deserialization transparently.
type CatalogCache interface {
	// Get retrieves a cached lookup by key. Returns nil, nil on a cache
	// miss.
	Get(ctx context.Context, key string) ([]*model.FineUnit, error)

	// Set stores a lookup result with the specified TTL.
	Set(ctx context.Context, key string, units []*model.FineUnit, ttl time.Duration) error

	// Delete invalidates a cached lookup by key.
	Delete(ctx context.Context, key string) error
}
