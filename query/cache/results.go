package cache

import (
	"time"

	"github.com/satishbabariya/aql-go/internal/debug"
	"github.com/satishbabariya/aql-go/telemetry"
)

// ResultCache holds select results keyed by SQL text and arguments. Entries are tagged
// with the query spaces of their select and dropped when a statement writes to one of
// those spaces.
type ResultCache struct {
	lru       *LRU
	ttl       time.Duration
	telemetry *telemetry.Collector
}

// NewResultCache creates a result cache holding at most size results for ttl.
func NewResultCache(size int, ttl time.Duration, t *telemetry.Collector) *ResultCache {
	return &ResultCache{lru: NewLRU(size, ttl), ttl: ttl, telemetry: t}
}

// Get returns the cached results of sql run with args.
func (c *ResultCache) Get(sql string, args []any) ([]any, bool) {
	v, ok := c.lru.Get(ResultKey(sql, args))
	c.telemetry.RecordCacheLookup("result", ok)
	if !ok {
		return nil, false
	}
	return v.([]any), true
}

// Put caches the results of sql run with args.
func (c *ResultCache) Put(sql string, args []any, rows []any, spaces []string) {
	c.lru.Put(ResultKey(sql, args), rows, c.ttl, spaces...)
}

// Invalidate drops the results that read any of spaces.
func (c *ResultCache) Invalidate(spaces []string) {
	if n := c.lru.InvalidateSpaces(spaces...); n > 0 {
		debug.Debug("invalidated cached results", "spaces", spaces, "entries", n)
	}
}

// Stats returns the cache statistics.
func (c *ResultCache) Stats() Stats {
	return c.lru.Stats()
}
