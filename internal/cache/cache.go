// Package cache implements the validated result cache that sits in front of
// expensive recomputation. Writes are gated by caller-supplied validators so
// a partial or error artifact can never be observed from the cache, and
// entries can be invalidated in bulk by owner key.
package cache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Validator decides whether a value may be stored. Validators are supplied
// per artifact type by the caller, not hardcoded in the cache.
type Validator func(any) bool

type entry struct {
	value     any
	owner     string
	expiresAt time.Time
}

// Cache is a bounded key/value store with TTL, validator-gated writes, and
// per-owner bulk invalidation. Safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	byOwner    map[string]map[string]struct{}
	order      []string // FIFO order for eviction
	maxEntries int

	hits     uint64
	misses   uint64
	rejected uint64
}

// New creates a cache bounded to maxEntries; oldest entries are evicted
// first once the bound is reached.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Cache{
		entries:    make(map[string]entry),
		byOwner:    make(map[string]map[string]struct{}),
		order:      make([]string, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Get returns the value for key. Expiry is checked at read time: an expired
// entry is treated identically to an absent one and is lazily purged.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry with a fresh one.
		if cur, still := c.entries[key]; still && time.Now().After(cur.expiresAt) {
			c.removeLocked(key, cur.owner)
		}
		c.mu.Unlock()
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&c.hits, 1)
	return e.value, true
}

// Put stores value under key if valid accepts it. A rejected value is a
// silent no-op, not an error: the previous entry, if any, is left untouched.
func (c *Cache) Put(key, owner string, value any, ttl time.Duration, valid Validator) {
	if valid != nil && !valid(value) {
		atomic.AddUint64(&c.rejected, 1)
		return
	}
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, exists := c.entries[key]; exists {
		if old.owner != owner {
			c.detachOwnerLocked(key, old.owner)
			c.attachOwnerLocked(key, owner)
		}
		c.entries[key] = entry{value: value, owner: owner, expiresAt: time.Now().Add(ttl)}
		return
	}

	// Evict oldest entries if at capacity.
	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if old, ok := c.entries[oldest]; ok {
			c.detachOwnerLocked(oldest, old.owner)
			delete(c.entries, oldest)
		}
	}

	c.entries[key] = entry{value: value, owner: owner, expiresAt: time.Now().Add(ttl)}
	c.order = append(c.order, key)
	c.attachOwnerLocked(key, owner)
}

// InvalidateOwner removes every entry stored for owner and no others. Called
// after any state-changing operation so stale results cannot be observed.
func (c *Cache) InvalidateOwner(owner string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byOwner[owner]
	for key := range keys {
		delete(c.entries, key)
	}
	if len(keys) > 0 {
		c.dropOrderLocked(keys)
	}
	n := len(keys)
	delete(c.byOwner, owner)
	return n
}

// dropOrderLocked removes keys from the FIFO order. A key left behind after
// removal would reappear twice once re-inserted, and the stale slot would
// later evict the fresh entry ahead of older ones.
func (c *Cache) dropOrderLocked(keys map[string]struct{}) {
	kept := c.order[:0]
	for _, k := range c.order {
		if _, gone := keys[k]; !gone {
			kept = append(kept, k)
		}
	}
	c.order = kept
}

func (c *Cache) attachOwnerLocked(key, owner string) {
	set := c.byOwner[owner]
	if set == nil {
		set = make(map[string]struct{})
		c.byOwner[owner] = set
	}
	set[key] = struct{}{}
}

func (c *Cache) detachOwnerLocked(key, owner string) {
	if set := c.byOwner[owner]; set != nil {
		delete(set, key)
		if len(set) == 0 {
			delete(c.byOwner, owner)
		}
	}
}

func (c *Cache) removeLocked(key, owner string) {
	delete(c.entries, key)
	c.detachOwnerLocked(key, owner)
	c.dropOrderLocked(map[string]struct{}{key: {}})
}

// Stats holds cache counters.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Rejected uint64 `json:"rejected"`
	Entries  int    `json:"entries"`
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
		Rejected: atomic.LoadUint64(&c.rejected),
		Entries:  n,
	}
}

// OwnerKey builds the owner component of a fingerprint from the opaque
// user and platform identity.
func OwnerKey(user, platform string) string {
	return platform + "/" + user
}

// Fingerprint derives a cache key from request parameters plus the owner
// identity using FNV-1a.
func Fingerprint(owner string, parts ...string) string {
	const prime = 1099511628211
	h := uint64(14695981039346656037)
	mix := func(s string) {
		for i := 0; i < len(s); i++ {
			h ^= uint64(s[i])
			h *= prime
		}
		h ^= 0x1f
		h *= prime
	}
	mix(owner)
	for _, p := range parts {
		mix(p)
	}
	return strconv.FormatUint(h, 16)
}
