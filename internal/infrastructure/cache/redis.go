package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/videoannot/ingestworker/internal/domain/model"
)

const (
	// catalogCacheKeyPrefix is the prefix for catalog lookup cache keys in Redis.
	catalogCacheKeyPrefix = "catalog:"
)

// fineUnitJSON is the JSON representation of a FineUnit for caching. An
// explicit struct avoids coupling to the domain model's JSON tags.
type fineUnitJSON struct {
	ID          int64   `json:"id"`
	Kind        string  `json:"kind"`
	Label       string  `json:"label"`
	Lang        string  `json:"lang"`
	POS         *string `json:"pos,omitempty"`
	Definition  string  `json:"def"`
	Status      string  `json:"status"`
	ExternalKey *string `json:"external_key,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// RedisCatalogCache implements CatalogCache using Redis as the backing store.
type RedisCatalogCache struct {
	client *redis.Client
}

// NewRedisCatalogCache creates a new Redis-backed catalog lookup cache.
func NewRedisCatalogCache(client *redis.Client) *RedisCatalogCache {
	return &RedisCatalogCache{client: client}
}

// Get retrieves a cached query_fine_units result. Returns nil, nil on a
// cache miss.
func (c *RedisCatalogCache) Get(ctx context.Context, key string) ([]*model.FineUnit, error) {
	data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	units, err := deserializeUnits(data)
	if err != nil {
		return nil, fmt.Errorf("deserialize fine units: %w", err)
	}
	return units, nil
}

// Set stores a query_fine_units result with the given TTL.
func (c *RedisCatalogCache) Set(ctx context.Context, key string, units []*model.FineUnit, ttl time.Duration) error {
	data, err := serializeUnits(units)
	if err != nil {
		return fmt.Errorf("serialize fine units: %w", err)
	}

	if err := c.client.Set(ctx, c.buildKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cached query result, used when a create_fine_unit call
// adds a row that could answer a previously-cached empty lookup.
func (c *RedisCatalogCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.buildKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCatalogCache) buildKey(key string) string {
	return catalogCacheKeyPrefix + key
}

func serializeUnits(units []*model.FineUnit) ([]byte, error) {
	out := make([]fineUnitJSON, 0, len(units))
	for _, u := range units {
		var pos *string
		if u.POS != nil {
			s := string(*u.POS)
			pos = &s
		}
		out = append(out, fineUnitJSON{
			ID:          u.ID,
			Kind:        string(u.Kind),
			Label:       u.Label,
			Lang:        u.Lang,
			POS:         pos,
			Definition:  u.Definition,
			Status:      string(u.Status),
			ExternalKey: u.ExternalKey,
			CreatedAt:   u.CreatedAt.Format(time.RFC3339Nano),
			UpdatedAt:   u.UpdatedAt.Format(time.RFC3339Nano),
		})
	}
	return json.Marshal(out)
}

func deserializeUnits(data []byte) ([]*model.FineUnit, error) {
	var raw []fineUnitJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	units := make([]*model.FineUnit, 0, len(raw))
	for _, v := range raw {
		var pos *model.POSCode
		if v.POS != nil {
			code := model.POSCode(*v.POS)
			pos = &code
		}
		createdAt, err := time.Parse(time.RFC3339Nano, v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		updatedAt, err := time.Parse(time.RFC3339Nano, v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		units = append(units, &model.FineUnit{
			ID:          v.ID,
			Kind:        model.FineUnitKind(v.Kind),
			Label:       v.Label,
			Lang:        v.Lang,
			POS:         pos,
			Definition:  v.Definition,
			Status:      model.FineUnitStatus(v.Status),
			ExternalKey: v.ExternalKey,
			CreatedAt:   createdAt,
			UpdatedAt:   updatedAt,
		})
	}
	return units, nil
}

var _ CatalogCache = (*RedisCatalogCache)(nil)
