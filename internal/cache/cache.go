// Package cache is a two-tier response cache: an in-process go-cache store in
// front of an optional shared store such as Redis.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// SharedStore is the cross-instance tier.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Cache stores JSON encoded values. Shared tier failures are logged and
// treated as misses.
type Cache struct {
	local  *gocache.Cache
	shared SharedStore
	log    *slog.Logger
}

// New builds a cache. A nil shared store keeps everything in process.
func New(defaultTTL, sweep time.Duration, shared SharedStore, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		local:  gocache.New(defaultTTL, sweep),
		shared: shared,
		log:    log,
	}
}

// Get decodes the cached value for key into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	raw, ok := c.GetRaw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("cache: decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// GetRaw returns the encoded bytes for key. Shared hits are copied into the
// local tier with its default expiration.
func (c *Cache) GetRaw(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.local.Get(key); ok {
		return v.([]byte), true
	}
	if c.shared == nil {
		return nil, false
	}

	raw, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache: shared get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.local.SetDefault(key, raw)
	return raw, true
}

// Set encodes v and stores it in both tiers.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache: encode failed", "key", key, "error", err)
		return
	}
	c.SetRaw(ctx, key, raw, ttl)
}

// SetRaw stores already encoded bytes.
func (c *Cache) SetRaw(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	c.local.Set(key, raw, ttl)
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, raw, ttl); err != nil {
		c.log.Warn("cache: shared set failed", "key", key, "error", err)
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.local.Delete(key)
	if c.shared == nil {
		return
	}
	if err := c.shared.Delete(ctx, key); err != nil {
		c.log.Warn("cache: shared delete failed", "key", key, "error", err)
	}
}

// InvalidatePrefix drops every key starting with prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	for key := range c.local.Items() {
		if strings.HasPrefix(key, prefix) {
			c.local.Delete(key)
		}
	}
	if c.shared == nil {
		return
	}
	if err := c.shared.DeletePrefix(ctx, prefix); err != nil {
		c.log.Warn("cache: shared invalidate failed", "prefix", prefix, "error", err)
	}
}

// Close releases the shared tier.
func (c *Cache) Close() error {
	c.local.Flush()
	if c.shared == nil {
		return nil
	}
	return c.shared.Close()
}
