// Package cache implements the short-lived fact cache shared by identity
// resolution and membership checks.
//
// Entries expire on their own timer and are also treated as absent by Get and
// Has once their ttl has elapsed, whichever happens first. Keys are namespaced
// (see Key) so several kinds of facts can live in one Cache.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Namespaces in use by the service.
const (
	NamespaceIdentity   = "identity"
	NamespaceMembership = "membership"
)

// Key builds a namespaced key, e.g. Key("membership", "u1", "p1") is
// "membership:u1:p1".
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// Recorder observes cache hits and misses per namespace.
type Recorder interface {
	CacheHit(namespace string)
	CacheMiss(namespace string)
}

type entry struct {
	value      any
	insertedAt time.Time
	ttl        time.Duration
	gen        uint64
	timer      *time.Timer
}

// Cache is a concurrency-safe TTL key/value store.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	gen      uint64
	now      func() time.Time
	recorder Recorder
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for lazy expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRecorder reports hit/miss counts to r.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key for ttl, replacing any previous value and
// restarting its expiry timer. A non-positive ttl removes the key.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(key)
	if ttl <= 0 {
		return
	}

	c.gen++
	e := &entry{value: value, insertedAt: c.now(), ttl: ttl, gen: c.gen}
	gen := e.gen
	e.timer = time.AfterFunc(ttl, func() { c.expire(key, gen) })
	c.entries[key] = e
}

// Get returns the live value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.liveLocked(key)
	c.mu.Unlock()

	c.record(key, ok)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Has reports whether key holds a live value.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.liveLocked(key)
	return ok
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		c.removeLocked(key)
	}
}

// Len returns the number of stored entries, including ones whose ttl has
// elapsed but that have not been evicted yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Get is a typed wrapper around Cache.Get. A value of another type counts as
// absent.
func Get[V any](c *Cache, key string) (V, bool) {
	var zero V
	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

func (c *Cache) liveLocked(key string) (*entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) >= e.ttl {
		c.removeLocked(key)
		return nil, false
	}
	return e, true
}

func (c *Cache) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(c.entries, key)
}

// expire runs on the entry timer. The generation check keeps a stale timer
// from evicting a value written after it was scheduled.
func (c *Cache) expire(key string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.gen == gen {
		delete(c.entries, key)
	}
}

func (c *Cache) record(key string, hit bool) {
	if c.recorder == nil {
		return
	}
	namespace, _, _ := strings.Cut(key, ":")
	if hit {
		c.recorder.CacheHit(namespace)
		return
	}
	c.recorder.CacheMiss(namespace)
}
