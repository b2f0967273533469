package realtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	updatedAt time.Time
	deleted   bool
}

// Collection is an in-memory view of one table kept current by events.
// Conflicting updates to a row are resolved by the row's server UpdatedAt:
// an event that is not newer than what is stored is ignored, whatever order
// it arrived in. Deletes are remembered so a late update cannot revive a row.
type Collection[T any] struct {
	mu   sync.RWMutex
	rows map[string]entry[T]
}

func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{rows: make(map[string]entry[T])}
}

// Apply reports whether e changed the view.
func (c *Collection[T]) Apply(e Event) (bool, error) {
	var value T
	if e.Op != OpDelete && len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &value); err != nil {
			return false, fmt.Errorf("malformed %s row %s: %w", e.Topic, e.RowID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.rows[e.RowID]; ok && !e.UpdatedAt.After(current.updatedAt) {
		return false, nil
	}

	c.rows[e.RowID] = entry[T]{
		value:     value,
		updatedAt: e.UpdatedAt,
		deleted:   e.Op == OpDelete,
	}

	return true, nil
}

// Put seeds the view with a row read directly from the store.
func (c *Collection[T]) Put(id string, value T, updatedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.rows[id]; ok && !updatedAt.After(current.updatedAt) {
		return
	}
	c.rows[id] = entry[T]{value: value, updatedAt: updatedAt}
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.rows[id]
	if !ok || e.deleted {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Snapshot returns live rows ordered by UpdatedAt, newest first.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type kv struct {
		id string
		e  entry[T]
	}
	live := make([]kv, 0, len(c.rows))
	for id, e := range c.rows {
		if !e.deleted {
			live = append(live, kv{id, e})
		}
	}

	sort.Slice(live, func(i, j int) bool {
		if live[i].e.updatedAt.Equal(live[j].e.updatedAt) {
			return live[i].id < live[j].id
		}
		return live[i].e.updatedAt.After(live[j].e.updatedAt)
	})

	out := make([]T, len(live))
	for i, r := range live {
		out[i] = r.e.value
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.rows {
		if !e.deleted {
			n++
		}
	}
	return n
}
