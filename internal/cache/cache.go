// Package cache memoizes assembled listing pages with a TTL and
// explicit per-account invalidation.
package cache

import (
	"sync"
	"time"

	"github.com/nhle/mailgate/internal/model"
)

// DefaultTTL is the listing-cache lifetime used by the service.
const DefaultTTL = 300 * time.Second

// key is the exact lookup tuple; there is no partial-key matching.
type key struct {
	address  string
	view     model.FolderView
	page     int
	pageSize int
}

type entry struct {
	listing *model.EmailListing
	created time.Time
}

// Cache is a process-wide, mutex-guarded listing cache. Entries expire
// lazily: the read that discovers an expired entry evicts it. Losing
// the cache on restart is safe; a miss triggers a live fetch.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[key]entry
	now     func() time.Time
}

// New creates a Cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[key]entry),
		now:     time.Now,
	}
}

// Get returns the cached listing for the exact tuple, or nil on a miss
// or an expired entry.
func (c *Cache) Get(address string, view model.FolderView, page, pageSize int) *model.EmailListing {
	k := key{address: address, view: view, page: page, pageSize: pageSize}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return nil
	}
	if c.now().Sub(e.created) >= c.ttl {
		delete(c.entries, k)
		return nil
	}
	return e.listing
}

// Put stores a listing under its own tuple. Listings are immutable
// once constructed, so the pointer is shared, not copied.
func (c *Cache) Put(listing *model.EmailListing) {
	k := key{
		address:  listing.Address,
		view:     listing.FolderView,
		page:     listing.Page,
		pageSize: listing.PageSize,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = entry{listing: listing, created: c.now()}
}

// InvalidateAccount drops every cached page for the account across all
// views and page sizes: a refresh intent implies the whole mailbox
// state may be stale.
func (c *Cache) InvalidateAccount(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if k.address == address {
			delete(c.entries, k)
		}
	}
}
