package settings

import "sync"

// Cache maps caller-supplied instance ids to their last resolved node.
// Entries are never evicted; callers invalidate an id when the instance it
// names is discarded.
type Cache struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{nodes: make(map[string]*Node)}
}

// Get returns the node stored for id
func (c *Cache) Get(id string) (*Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[id]
	return n, ok
}

func (c *Cache) put(id string, n *Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[id] = n
}

// Invalidate drops the entry for id
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, id)
}

// Len returns the number of cached instances
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}
