package report

import (
	"context"
	"time"

	"github.com/newhook/pipereport/internal/cachemanager"
	"github.com/newhook/pipereport/internal/logging"
)

// CachedSource is a LogSource that remembers console text for a while.
// Runs without console text are not cached so a later fetch can find them.
type CachedSource struct {
	source LogSource
	cache  cachemanager.CacheManager[string, string]
	ttl    time.Duration
}

var _ LogSource = (*CachedSource)(nil)

// NewCachedSource wraps source with cache. A non-positive ttl uses
// cachemanager.DefaultExpiration.
func NewCachedSource(source LogSource, cache cachemanager.CacheManager[string, string], ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = cachemanager.DefaultExpiration
	}
	return &CachedSource{source: source, cache: cache, ttl: ttl}
}

// ConsoleText returns the cached text for ref, fetching it on a miss.
func (c *CachedSource) ConsoleText(ctx context.Context, ref RunRef) (string, bool, error) {
	key := ref.Key()
	if text, ok := c.cache.Get(ctx, key); ok {
		logging.Debug("console text cache hit", "run", key)
		return text, true, nil
	}

	text, ok, err := c.source.ConsoleText(ctx, ref)
	if err != nil || !ok {
		return "", ok, err
	}
	c.cache.Set(ctx, key, text, c.ttl)
	return text, true, nil
}

// Invalidate drops the cached text for refs.
func (c *CachedSource) Invalidate(ctx context.Context, refs ...RunRef) error {
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = ref.Key()
	}
	return c.cache.Delete(ctx, keys...)
}
