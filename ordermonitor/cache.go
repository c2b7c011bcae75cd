package ordermonitor

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// nowUnix is wall-clock "now" in unix seconds, used wherever the operator's
// real-time clock (rather than chain time) is the relevant measure — see
// spec's "chain time vs wall time" note.
func nowUnix() uint64 { return uint64(time.Now().Unix()) }

// cacheEntry pairs a cached order with the wall-clock instant it must be
// dropped at. A zero deadline means the entry never expires on its own.
type cacheEntry struct {
	order    *OrderRequest
	deadline time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// orderCache is a keyed store of pending orders with a per-entry TTL
// derived from each order's own expiry, generalizing the shape of the
// teacher's preconf.TimedTxSet / preconf.FIFOTxSet (map + insertion-ordered
// slice behind a single mutex) to carry a deadline that varies per entry —
// no TTL-cache library in the retrieved pack supports that (see DESIGN.md).
type orderCache struct {
	name string // used only in log lines, e.g. "lock_and_prove"

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string // insertion order, for deterministic iteration
}

func newOrderCache(name string) *orderCache {
	return &orderCache{
		name:    name,
		entries: make(map[string]*cacheEntry),
	}
}

// Insert adds or replaces an order. The TTL is max(0, ExpireTimestamp-now);
// an order with no ExpireTimestamp never expires on its own.
func (c *orderCache) Insert(o *OrderRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := o.ID()
	entry := &cacheEntry{order: o}
	if o.ExpireTimestamp != nil {
		now := nowUnix()
		var ttl uint64
		if *o.ExpireTimestamp > now {
			ttl = *o.ExpireTimestamp - now
		}
		entry.deadline = time.Now().Add(time.Duration(ttl) * time.Second)
	}

	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
	}
	c.entries[id] = entry
	log.Trace("order cached", "cache", c.name, "id", id)
}

// Get returns the order for id, or nil if absent or expired.
func (c *orderCache) Get(id string) *OrderRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok || entry.expired(time.Now()) {
		return nil
	}
	return entry.order
}

// Invalidate removes id from the cache, regardless of TTL. This is the
// ratchet the monitor loop uses once an order has been committed to the DB
// (accepted or skipped) — see invariant 2.
func (c *orderCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
}

func (c *orderCache) remove(id string) {
	if _, ok := c.entries[id]; !ok {
		return
	}
	delete(c.entries, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of live (non-expired) entries.
func (c *orderCache) Len() int {
	return len(c.Snapshot())
}

// Snapshot returns all currently-live entries in insertion order, silently
// dropping (and forgetting) any entry whose TTL has elapsed — invariant 3:
// TTL expiry never touches the DB. Concurrent mutation during a snapshot is
// safe: a snapshot is a point-in-time copy, and the caller's use of it
// never blocks further inserts.
func (c *orderCache) Snapshot() []*OrderRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	live := make([]*OrderRequest, 0, len(c.order))
	var expiredIDs []string
	for _, id := range c.order {
		entry := c.entries[id]
		if entry.expired(now) {
			expiredIDs = append(expiredIDs, id)
			continue
		}
		live = append(live, entry.order)
	}
	for _, id := range expiredIDs {
		c.remove(id)
		log.Debug("order cache entry expired, dropping silently", "cache", c.name, "id", id)
	}
	return live
}
