package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const catalogKey = "catalog:books"

// CatalogCache holds the serialized public book list. A stale entry is
// only ever a few seconds old; writes invalidate eagerly.
type CatalogCache struct {
	client *goredis.Client
}

func NewCatalogCache(client *goredis.Client) *CatalogCache {
	return &CatalogCache{client: client}
}

func (c *CatalogCache) Get(ctx context.Context) ([]byte, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}

	payload, err := c.client.Get(ctx, catalogKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get catalog cache: %w", err)
	}

	return payload, true, nil
}

func (c *CatalogCache) Set(ctx context.Context, payload []byte, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if len(payload) == 0 || ttl <= 0 {
		return nil
	}

	if err := c.client.Set(ctx, catalogKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set catalog cache: %w", err)
	}
	return nil
}

func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, catalogKey).Err(); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}
