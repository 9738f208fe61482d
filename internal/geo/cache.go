package geo

import (
	"context"
	"time"

	"github.com/obsplane/observability/internal/cache"
	"github.com/obsplane/observability/internal/models"
)

// CachedLookup wraps an IPLookup with a Redis-backed cache, falling back to
// the wrapped lookup (and silently skipping the cache) when Redis is disabled.
type CachedLookup struct {
	inner IPLookup
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedLookup wraps inner with ca, caching successful lookups for ttl.
func NewCachedLookup(inner IPLookup, ca *cache.Cache, ttl time.Duration) *CachedLookup {
	return &CachedLookup{inner: inner, cache: ca, ttl: ttl}
}

// Lookup checks the cache before delegating to the wrapped lookup.
func (c *CachedLookup) Lookup(ip string) (models.Geo, bool) {
	ctx := context.Background()
	var cached models.Geo
	if hit, _ := c.cache.Get(ctx, cache.GeoKey(ip), &cached); hit {
		return cached, true
	}

	g, ok := c.inner.Lookup(ip)
	if ok {
		_ = c.cache.Set(ctx, cache.GeoKey(ip), g, c.ttl)
	}
	return g, ok
}
