// Package modelstore wraps a domain.ModelStore with a bounded, in-memory
// LRU cache of LinUCB model blobs, so a hot item's weights don't round-trip
// to the backing store on every selection (§5: "the model cache is a
// bounded LRU, default 1000 items"). All operations are O(1): a hash map
// for lookup, a doubly-linked list for recency order.
package modelstore

import (
	"container/list"
	"context"
	"sync"

	"github.com/catengine/cat/internal/domain"
)

// DefaultCapacity is the number of item models kept resident when no
// explicit capacity is supplied.
const DefaultCapacity = 1000

type entry struct {
	itemID  string
	blob    []byte
	element *list.Element
}

// Cache is a count-bounded LRU in front of a domain.ModelStore. It
// satisfies domain.ModelStore itself, so it drops into the engine anywhere
// a ModelStore is expected.
type Cache struct {
	mu       sync.Mutex
	backing  domain.ModelStore
	capacity int
	items    map[string]*entry
	order    *list.List
}

// New wraps backing with an LRU cache of at most capacity models.
// capacity <= 0 falls back to DefaultCapacity.
func New(backing domain.ModelStore, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		backing:  backing,
		capacity: capacity,
		items:    make(map[string]*entry),
		order:    list.New(),
	}
}

// Get returns itemID's cached blob if resident, else loads it from the
// backing store and caches the result. A nil "no model yet" miss or an
// error is NOT cached, since a Put for that item may follow immediately.
func (c *Cache) Get(ctx context.Context, itemID string) ([]byte, error) {
	c.mu.Lock()
	if e, ok := c.items[itemID]; ok {
		c.order.MoveToFront(e.element)
		blob := e.blob
		c.mu.Unlock()
		return blob, nil
	}
	c.mu.Unlock()

	blob, err := c.backing.Get(ctx, itemID)
	if err != nil || blob == nil {
		return blob, err
	}

	c.mu.Lock()
	c.insertLocked(itemID, blob)
	c.mu.Unlock()
	return blob, nil
}

// Put writes through to the backing store, then updates the cache.
func (c *Cache) Put(ctx context.Context, itemID string, blob []byte) error {
	if err := c.backing.Put(ctx, itemID, blob); err != nil {
		return err
	}
	c.mu.Lock()
	c.insertLocked(itemID, blob)
	c.mu.Unlock()
	return nil
}

// insertLocked requires c.mu held.
func (c *Cache) insertLocked(itemID string, blob []byte) {
	if e, ok := c.items[itemID]; ok {
		e.blob = blob
		c.order.MoveToFront(e.element)
		return
	}
	e := &entry{itemID: itemID, blob: blob}
	e.element = c.order.PushFront(e)
	c.items[itemID] = e
	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	c.order.Remove(oldest)
	delete(c.items, e.itemID)
}

// Len reports how many models are currently resident.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
