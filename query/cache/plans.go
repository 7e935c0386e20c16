package cache

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/satishbabariya/aql-go/query/translator"
	"github.com/satishbabariya/aql-go/telemetry"
)

// PlanCache holds compiled translators keyed by query string, enabled filters and
// shallowness. Concurrent lookups of a missing key share one compilation.
type PlanCache struct {
	lru       *LRU
	group     singleflight.Group
	telemetry *telemetry.Collector
}

// NewPlanCache creates a plan cache holding at most size plans.
func NewPlanCache(size int, t *telemetry.Collector) *PlanCache {
	return &PlanCache{lru: NewLRU(size, 0), telemetry: t}
}

// PlanKey returns the cache key of a compilation.
func PlanKey(query string, filters []string, shallow bool) string {
	sorted := append([]string(nil), filters...)
	sort.Strings(sorted)
	return strconv.FormatBool(shallow) + "|" + strings.Join(sorted, ",") + "|" + query
}

// Get returns the cached plan for key, compiling it with compile on a miss. Failed
// compilations are not cached.
func (c *PlanCache) Get(key string, compile func() (*translator.Translator, error)) (*translator.Translator, error) {
	if v, ok := c.lru.Get(key); ok {
		c.telemetry.RecordCacheLookup("plan", true)
		return v.(*translator.Translator), nil
	}
	c.telemetry.RecordCacheLookup("plan", false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.lru.Get(key); ok {
			return v, nil
		}
		tr, err := compile()
		if err != nil {
			return nil, err
		}
		c.lru.Put(key, tr, 0, tr.QuerySpaces()...)
		return tr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*translator.Translator), nil
}

// Len returns the number of cached plans.
func (c *PlanCache) Len() int {
	return c.lru.Stats().Size
}

// Stats returns the cache statistics.
func (c *PlanCache) Stats() Stats {
	return c.lru.Stats()
}

// Clear drops every cached plan.
func (c *PlanCache) Clear() {
	c.lru.Purge()
}
