package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type LinkCacheInterface interface {
	Get(ctx context.Context, code string) (*CachedLink, error)
	Set(ctx context.Context, code string, link *CachedLink, ttl time.Duration) error
	Delete(ctx context.Context, code string) error
}

// LinkCache keeps resolved links in Redis for the redirect hot path.
// Entries never outlive the link's expiry, so a hit is always a live link
// as far as the cache knows; the resolver still re-checks the timestamp.
type LinkCache struct {
	client *redis.Client
}

type CachedLink struct {
	Target    string    `json:"target"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewLinkCache(client *redis.Client) *LinkCache {
	return &LinkCache{client: client}
}

func (c *LinkCache) Get(ctx context.Context, code string) (*CachedLink, error) {
	key := "link:" + code
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedLink
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

func (c *LinkCache) Set(ctx context.Context, code string, link *CachedLink, ttl time.Duration) error {
	key := "link:" + code
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *LinkCache) Delete(ctx context.Context, code string) error {
	key := "link:" + code
	return c.client.Del(ctx, key).Err()
}
