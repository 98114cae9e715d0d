package cache

import (
	"sync"

	"github.com/gogpu/dmabuf"
)

// ImportCache maps buffers to values, holding the buffers weakly.
// The release callback, if any, is called with the cache lock held for
// every value that leaves the cache; it must not call back into the cache.
type ImportCache[V any] struct {
	mu        sync.Mutex
	entries   map[uint64]*cacheEntry[V]
	softLimit int
	tick      int64 // Monotonic access counter
	release   func(V)

	hits      uint64
	misses    uint64
	evictions uint64
}

// cacheEntry holds a cached value with its buffer and access time.
type cacheEntry[V any] struct {
	buf   dmabuf.WeakDmabuf
	value V
	atime int64
}

// New creates a cache with the given soft limit (0 means unlimited).
// release may be nil.
func New[V any](softLimit int, release func(V)) *ImportCache[V] {
	return &ImportCache[V]{
		entries:   make(map[uint64]*cacheEntry[V]),
		softLimit: softLimit,
		release:   release,
	}
}

// Get returns the value stored for buf.
// A value whose buffer is gone is released and reported as missing.
func (c *ImportCache[V]) Get(buf *dmabuf.Dmabuf) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lookup(buf)
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.value, true
}

// Set stores value for buf, releasing any previous value for it.
func (c *ImportCache[V]) Set(buf *dmabuf.Dmabuf, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[buf.ID()]; ok {
		c.releaseValue(old.value)
	}
	c.insert(buf, value)
}

// GetOrCreate returns the cached value for buf or creates it.
// create is called under the lock, so concurrent callers never import the
// same buffer twice. A create error is returned and nothing is stored.
func (c *ImportCache[V]) GetOrCreate(buf *dmabuf.Dmabuf, create func(*dmabuf.Dmabuf) (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.lookup(buf); ok {
		c.hits++
		return entry.value, nil
	}
	c.misses++

	value, err := create(buf)
	if err != nil {
		var zero V
		return zero, err
	}
	c.insert(buf, value)
	return value, nil
}

// Delete removes and releases the value for buf.
// Returns true if an entry was found.
func (c *ImportCache[V]) Delete(buf *dmabuf.Dmabuf) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[buf.ID()]
	if !ok {
		return false
	}
	delete(c.entries, buf.ID())
	c.releaseValue(entry.value)
	return true
}

// Cleanup releases every value whose buffer is gone and returns how many
// entries were removed.
func (c *ImportCache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeGone()
}

// Clear releases all values.
func (c *ImportCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries {
		c.releaseValue(entry.value)
	}
	c.entries = make(map[uint64]*cacheEntry[V])
	c.tick = 0
}

// Len returns the number of entries, including stale ones not yet cleaned up.
func (c *ImportCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Capacity returns the soft limit of the cache.
func (c *ImportCache[V]) Capacity() int {
	return c.softLimit
}

// Stats returns cache statistics.
func (c *ImportCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:       len(c.entries),
		Capacity:  c.softLimit,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// lookup finds a live entry for buf and touches it. A stale entry under
// the same key is released. Caller must hold c.mu.
func (c *ImportCache[V]) lookup(buf *dmabuf.Dmabuf) (*cacheEntry[V], bool) {
	entry, ok := c.entries[buf.ID()]
	if !ok {
		return nil, false
	}
	if entry.buf.IsGone() {
		delete(c.entries, buf.ID())
		c.releaseValue(entry.value)
		return nil, false
	}
	c.tick++
	entry.atime = c.tick
	return entry, true
}

// insert stores a new entry and evicts if over the soft limit.
// Caller must hold c.mu.
func (c *ImportCache[V]) insert(buf *dmabuf.Dmabuf, value V) {
	c.tick++
	c.entries[buf.ID()] = &cacheEntry[V]{
		buf:   buf.Weak(),
		value: value,
		atime: c.tick,
	}

	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evictOldest()
	}
}

// removeGone drops entries whose buffer is gone. Caller must hold c.mu.
func (c *ImportCache[V]) removeGone() int {
	n := 0
	for id, entry := range c.entries {
		if entry.buf.IsGone() {
			delete(c.entries, id)
			c.releaseValue(entry.value)
			n++
		}
	}
	if n > 0 {
		dmabuf.Logger().Debug("cache: dropped stale imports", "count", n)
	}
	return n
}

// evictOldest removes stale entries, then the least recently used ones
// until the cache is at 75% of the soft limit. Caller must hold c.mu.
func (c *ImportCache[V]) evictOldest() {
	c.removeGone()

	targetSize := max(c.softLimit*3/4, 1)
	toEvict := len(c.entries) - targetSize
	if toEvict <= 0 {
		return
	}

	type entry struct {
		id    uint64
		atime int64
	}
	entries := make([]entry, 0, len(c.entries))
	for id, e := range c.entries {
		entries = append(entries, entry{id: id, atime: e.atime})
	}

	// Selection sort for the oldest few; eviction batches are small.
	for i := 0; i < toEvict && i < len(entries); i++ {
		minIdx := i
		for j := i + 1; j < len(entries); j++ {
			if entries[j].atime < entries[minIdx].atime {
				minIdx = j
			}
		}
		if minIdx != i {
			entries[i], entries[minIdx] = entries[minIdx], entries[i]
		}
		victim := c.entries[entries[i].id]
		delete(c.entries, entries[i].id)
		c.releaseValue(victim.value)
		c.evictions++
	}
}

func (c *ImportCache[V]) releaseValue(v V) {
	if c.release != nil {
		c.release(v)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the soft limit.
	Capacity int
	// Hits is the number of lookups that found a live entry.
	Hits uint64
	// Misses is the number of lookups that did not.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 when there were no lookups.
	HitRate float64
	// Evictions is the number of live entries evicted for space.
	Evictions uint64
}
