package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultDisabledTTL bounds how long an endpoint stays suppressed after the
// transport reported it disabled.
const DefaultDisabledTTL = 24 * time.Hour

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type disabledMark struct {
	Endpoint   string `json:"endpoint"`
	DisabledAt int64  `json:"disabled_at"`
}

// DisabledEndpointCache remembers endpoints the transport rejected as
// disabled so later fan-outs skip them without a network round trip.
type DisabledEndpointCache struct {
	cache CacheClient
	ttl   time.Duration
}

func NewDisabledEndpointCache(cache CacheClient, ttl time.Duration) *DisabledEndpointCache {
	if ttl <= 0 {
		ttl = DefaultDisabledTTL
	}
	return &DisabledEndpointCache{cache: cache, ttl: ttl}
}

// IsDisabled fails open: any lookup error, including a miss, means "send".
func (c *DisabledEndpointCache) IsDisabled(ctx context.Context, endpoint string) bool {
	var mark disabledMark
	return c.cache.Get(ctx, cacheKey(endpoint), &mark) == nil
}

func (c *DisabledEndpointCache) MarkDisabled(ctx context.Context, endpoint string) error {
	mark := disabledMark{Endpoint: endpoint, DisabledAt: time.Now().Unix()}
	return c.cache.Set(ctx, cacheKey(endpoint), mark, c.ttl)
}

// Enable clears the mark, e.g. after the device re-registered the endpoint.
func (c *DisabledEndpointCache) Enable(ctx context.Context, endpoint string) error {
	return c.cache.Del(ctx, cacheKey(endpoint))
}

// Endpoint ARNs are long; hash them to keep keys bounded.
func cacheKey(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return "snspush:disabled:" + hex.EncodeToString(sum[:])
}
