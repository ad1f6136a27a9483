package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"collections/pkg/errors"
	"collections/pkg/options"
)

// EntityCache shares resolved entities between portal instances.
// Entries have no TTL: an id keeps its entity for the life of the catalog.
type EntityCache struct {
	client *Client
}

var _ options.Cache = (*EntityCache)(nil)

// NewEntityCache creates the cache
func NewEntityCache(client *Client) *EntityCache {
	return &EntityCache{client: client}
}

// Get implements options.Cache
func (c *EntityCache) Get(ctx context.Context, kind, id string) (options.Entity, bool, error) {
	var e options.Entity
	err := c.client.Get(ctx, options.CacheKey(kind, id), &e)
	if errors.Is(err, redis.Nil) {
		return options.Entity{}, false, nil
	}
	if err != nil {
		return options.Entity{}, false, errors.Wrapf(err, "read cached %s %s", kind, id)
	}
	return e, true, nil
}

// Set implements options.Cache
func (c *EntityCache) Set(ctx context.Context, kind, id string, e options.Entity) error {
	if err := c.client.Set(ctx, options.CacheKey(kind, id), e, 0); err != nil {
		return errors.Wrapf(err, "cache %s %s", kind, id)
	}
	return nil
}

// Count reports how many entities are cached
func (c *EntityCache) Count(ctx context.Context) (int64, error) {
	return c.client.CountKeys(ctx, "entity:*")
}
