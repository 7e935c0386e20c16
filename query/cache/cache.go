// Package cache provides the compiled-plan cache and the query-result cache.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Stats represents cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	Size      int
	MaxSize   int
	Evictions int64
	HitRate   float64
}

// LRU is a bounded least-recently-used map with optional expiry. Entries may be tagged
// with the query spaces they were read from; a space index makes invalidating a table
// proportional to the entries that read it.
type LRU struct {
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
	bySpace    map[string]map[*list.Element]struct{}
	maxSize    int
	defaultTTL time.Duration
	stats      Stats
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	spaces    []string
}

// NewLRU creates a cache holding at most maxSize entries. A defaultTTL of zero keeps
// entries until they are evicted.
func NewLRU(maxSize int, defaultTTL time.Duration) *LRU {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &LRU{
		order:      list.New(),
		entries:    map[string]*list.Element{},
		bySpace:    map[string]map[*list.Element]struct{}{},
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		stats:      Stats{MaxSize: maxSize},
	}
}

// Get returns the live value of key and marks it recently used.
func (c *LRU) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.remove(el)
		c.stats.Misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Put stores value under key, tagged with spaces. A zero ttl selects the default TTL,
// a negative one disables expiry for the entry.
func (c *LRU) Put(key string, value any, ttl time.Duration, spaces ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl == 0 {
		ttl = c.defaultTTL
	}
	e := &entry{key: key, value: value, spaces: spaces}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	if el, ok := c.entries[key]; ok {
		c.remove(el)
	} else if c.order.Len() >= c.maxSize {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}
	el := c.order.PushFront(e)
	c.entries[key] = el
	for _, sp := range spaces {
		set, ok := c.bySpace[sp]
		if !ok {
			set = map[*list.Element]struct{}{}
			c.bySpace[sp] = set
		}
		set[el] = struct{}{}
	}
}

// Remove drops key.
func (c *LRU) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
}

// InvalidateSpaces drops the entries tagged with any of spaces and returns how many
// were dropped.
func (c *LRU) InvalidateSpaces(spaces ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, sp := range spaces {
		for el := range c.bySpace[sp] {
			c.remove(el)
			n++
		}
	}
	return n
}

// Purge drops every entry and resets the statistics.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = map[string]*list.Element{}
	c.bySpace = map[string]map[*list.Element]struct{}{}
	c.stats = Stats{MaxSize: c.maxSize}
}

// Stats returns a snapshot of the statistics.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.order.Len()
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

func (c *LRU) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.entries, e.key)
	for _, sp := range e.spaces {
		set := c.bySpace[sp]
		delete(set, el)
		if len(set) == 0 {
			delete(c.bySpace, sp)
		}
	}
}

// ResultKey derives the result-cache key of sql run with args. Arguments are written
// with their dynamic type so 1 and "1" differ.
func ResultKey(sql string, args []any) string {
	h := sha256.New()
	h.Write([]byte(sql))
	for _, arg := range args {
		fmt.Fprintf(h, "\x00%T:%v", arg, arg)
	}
	return hex.EncodeToString(h.Sum(nil))
}
