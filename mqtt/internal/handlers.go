// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal

import (
	"iter"
	"sync"
)

// Handlers is an ordered registry of callbacks where each registration can be
// removed independently of the others.
type Handlers[T any] struct {
	mu    sync.RWMutex
	next  uint64
	order []uint64
	items map[uint64]T
}

func NewHandlers[T any]() *Handlers[T] {
	return &Handlers[T]{items: map[uint64]T{}}
}

// Add registers a handler and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (h *Handlers[T]) Add(handler T) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.items[id] = handler
	h.order = append(h.order, id)

	return sync.OnceFunc(func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		delete(h.items, id)
		for i, o := range h.order {
			if o == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	})
}

// All iterates the handlers in registration order over a snapshot, so a
// handler may remove itself while being called.
func (h *Handlers[T]) All() iter.Seq[T] {
	h.mu.RLock()
	snapshot := make([]T, 0, len(h.order))
	for _, id := range h.order {
		snapshot = append(snapshot, h.items[id])
	}
	h.mu.RUnlock()

	return func(yield func(T) bool) {
		for _, v := range snapshot {
			if !yield(v) {
				return
			}
		}
	}
}

func (h *Handlers[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.order)
}
