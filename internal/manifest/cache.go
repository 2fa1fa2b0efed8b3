package manifest

import "sync"

// Cache is an externally owned manifest object that outlives rounds.
//
// Deprecated: configure Seed instead. A Cache is never reset; every pass
// of every round writes into it.
type Cache struct {
	mu  sync.Mutex
	obj *Object
}

// NewCache returns an empty cache.
//
// Deprecated: configure Seed instead.
func NewCache() *Cache {
	return &Cache{obj: NewObject()}
}

// NewCacheFrom wraps an existing object. The cache takes ownership of obj.
//
// Deprecated: configure Seed instead.
func NewCacheFrom(obj *Object) *Cache {
	if obj == nil {
		obj = NewObject()
	}
	return &Cache{obj: obj}
}

// Update runs fn with exclusive access to the cached object.
func (c *Cache) Update(fn func(obj *Object)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.obj == nil {
		c.obj = NewObject()
	}
	fn(c.obj)
}

// Snapshot returns a deep copy of the cached object.
func (c *Cache) Snapshot() *Object {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.obj == nil {
		return NewObject()
	}
	return c.obj.Clone()
}
