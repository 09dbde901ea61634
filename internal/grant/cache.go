package grant

import "sync"

// Cache is the per-user denormalized view of the grant table that the
// enforcement layer reads on every request. Reconciliation invalidates a
// user's entry after mutating their grants; the next read repopulates it.
type Cache struct {
	mu     sync.RWMutex
	byUser map[string][]*Grant
}

func NewCache() *Cache {
	return &Cache{byUser: make(map[string][]*Grant)}
}

func (c *Cache) Get(user string) ([]*Grant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	grants, ok := c.byUser[user]
	return grants, ok
}

func (c *Cache) Put(user string, grants []*Grant) {
	c.mu.Lock()
	c.byUser[user] = grants
	c.mu.Unlock()
}

func (c *Cache) Invalidate(user string) {
	c.mu.Lock()
	delete(c.byUser, user)
	c.mu.Unlock()
}
