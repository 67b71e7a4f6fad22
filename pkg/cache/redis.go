package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LinkCacheInterface caches short code resolutions for the redirect path.
// Get returns (nil, nil) on a miss.
type LinkCacheInterface interface {
	Get(ctx context.Context, code string) (*CachedLink, error)
	Set(ctx context.Context, code string, link *CachedLink, ttl time.Duration) error
	Delete(ctx context.Context, codes ...string) error
}

// CachedLink is a cached resolution. Missing marks a code known not to exist.
type CachedLink struct {
	LongURL string `json:"long_url"`
	Missing bool   `json:"missing,omitempty"`
}

type LinkCache struct {
	client *redis.Client
}

func NewLinkCache(client *redis.Client) *LinkCache {
	return &LinkCache{client: client}
}

func linkKey(code string) string {
	return "link:" + code
}

func (c *LinkCache) Get(ctx context.Context, code string) (*CachedLink, error) {
	val, err := c.client.Get(ctx, linkKey(code)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var cached CachedLink
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, fmt.Errorf("decode cached link: %w", err)
	}
	return &cached, nil
}

func (c *LinkCache) Set(ctx context.Context, code string, link *CachedLink, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, linkKey(code), data, ttl).Err()
}

func (c *LinkCache) Delete(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = linkKey(code)
	}
	return c.client.Del(ctx, keys...).Err()
}

// NoopCache never stores anything. It is used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*CachedLink, error) { return nil, nil }
func (NoopCache) Set(context.Context, string, *CachedLink, time.Duration) error { return nil }
func (NoopCache) Delete(context.Context, ...string) error { return nil }
