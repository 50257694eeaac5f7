package store

import (
	"sync"

	"github.com/xelth-com/eckposgo/internal/realtime"
)

// Entity is any record keyed by a unique integer id
type Entity interface {
	EntityID() int
}

// Collection is an ordered in-memory entity list keyed by unique id.
// Newly pushed creates are prepended so fresh records surface first;
// otherwise order is whatever the last full-list fetch produced.
// The merge operations are idempotent, which is what makes interleaved
// delivery of pushed events and local optimistic edits safe.
type Collection[T Entity] struct {
	mu    sync.RWMutex
	items []T
}

// NewCollection returns an empty collection
func NewCollection[T Entity]() *Collection[T] {
	return &Collection[T]{}
}

// Replace swaps in the result of a full-list fetch
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make([]T, len(items))
	copy(c.items, items)
}

// Items returns a snapshot copy of the collection
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get returns the record with the given id
func (c *Collection[T]) Get(id int) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.EntityID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of records
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Upsert applies create semantics: a record with an unseen id is
// prepended; a duplicate create (e.g. the echo of a locally-originated
// change) degrades to an in-place overwrite instead of a second copy.
func (c *Collection[T]) Upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items {
		if existing.EntityID() == item.EntityID() {
			c.items[i] = item
			return
		}
	}
	c.items = append([]T{item}, c.items...)
}

// Update replaces the record with the same id wholesale. An update for
// an id not present is a no-op: a record is never synthesized from a
// push alone.
func (c *Collection[T]) Update(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items {
		if existing.EntityID() == item.EntityID() {
			c.items[i] = item
			return true
		}
	}
	return false
}

// Delete removes the record with the given id, no-op if absent
func (c *Collection[T]) Delete(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.items {
		if existing.EntityID() == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Apply merges one change event into the collection
func (c *Collection[T]) Apply(action realtime.Action, item T) {
	switch action {
	case realtime.ActionCreate:
		c.Upsert(item)
	case realtime.ActionUpdate:
		c.Update(item)
	case realtime.ActionDelete:
		c.Delete(item.EntityID())
	}
}
