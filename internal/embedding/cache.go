package embedding

import (
	"container/list"
	"sync"
)

// VectorCache is an LRU cache of embeddings keyed by input text, used to
// avoid re-running inference for text the model has already seen.
type VectorCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type vectorEntry struct {
	key    string
	vector []float32
}

// NewVectorCache creates a cache holding at most capacity entries.
func NewVectorCache(capacity int) *VectorCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &VectorCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached vector for key and marks it recently used.
func (c *VectorCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*vectorEntry).vector, true
}

// Set stores the vector for key, evicting the least recently used entry when full.
func (c *VectorCache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*vectorEntry).vector = vector
		return
	}
	c.entries[key] = c.order.PushFront(&vectorEntry{key: key, vector: vector})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*vectorEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *VectorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
