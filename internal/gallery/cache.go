package gallery

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache keeps loaded galleries in memory per tenant. Entries have no
// expiry: a gallery only changes when its tenant retrains, and the trainer
// swaps the new snapshot in explicitly. Readers share immutable snapshots;
// concurrent first-access loads for the same tenant are collapsed into one
// disk read.
type Cache struct {
	store blobLoader

	mu        sync.RWMutex
	galleries map[int64]*Gallery
	loads     singleflight.Group
}

// blobLoader is the slice of Store the cache reads through.
type blobLoader interface {
	Load(tenantID int64) (*Gallery, error)
}

// NewCache creates a cache over the given store.
func NewCache(store *Store) *Cache {
	return &Cache{
		store:     store,
		galleries: make(map[int64]*Gallery),
	}
}

// Get returns the tenant's gallery, loading and caching it on first access.
// A tenant with no persisted gallery gets an empty gallery, a valid
// "nothing enrolled yet" state, not an error. Corrupt blobs propagate
// ErrCorruptGallery and are not cached.
func (c *Cache) Get(ctx context.Context, tenantID int64) (*Gallery, error) {
	c.mu.RLock()
	g, ok := c.galleries[tenantID]
	c.mu.RUnlock()
	if ok {
		return g, nil
	}

	v, err, _ := c.loads.Do(fmt.Sprintf("%d", tenantID), func() (any, error) {
		// Re-check under the flight: another caller may have finished the
		// load between the RUnlock above and this closure running.
		c.mu.RLock()
		cached, ok := c.galleries[tenantID]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := c.store.Load(tenantID)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			loaded = NewEmpty(tenantID)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if cached, ok := c.galleries[tenantID]; ok {
			// A Replace landed while the load was on disk; the swapped-in
			// gallery is newer than whatever the blob held.
			return cached, nil
		}
		c.galleries[tenantID] = loaded
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.(*Gallery), nil
}

// Replace swaps in a freshly built gallery for a tenant. Readers holding
// the previous snapshot keep it; new Get calls see the replacement.
func (c *Cache) Replace(g *Gallery) {
	c.mu.Lock()
	c.galleries[g.TenantID] = g
	c.mu.Unlock()
}

// Invalidate drops the cached gallery for a tenant so the next Get reloads
// it from the store.
func (c *Cache) Invalidate(tenantID int64) {
	c.mu.Lock()
	delete(c.galleries, tenantID)
	c.mu.Unlock()
}

// EvictAll drops every cached gallery (administrative).
func (c *Cache) EvictAll() {
	c.mu.Lock()
	c.galleries = make(map[int64]*Gallery)
	c.mu.Unlock()
}

// Cached returns the number of tenants with a resident gallery.
func (c *Cache) Cached() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.galleries)
}
