// Package notify is a small in-process publish/subscribe hub. The settlement
// engine publishes "split changed" events and the session issuer publishes
// sign-in/sign-out events; consumers decide what to re-query.
package notify

import "sync"

// Hub fans events out to subscribers. The zero value is ready to use.
type Hub[T any] struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(T)
}

// Subscribe registers fn for every later Publish and returns a function that
// removes it. fn runs on the publisher's goroutine and must not block.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]func(T))
	}
	id := h.next
	h.next++
	h.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber.
func (h *Hub[T]) Publish(ev T) {
	h.mu.RLock()
	fns := make([]func(T), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Channel subscribes a buffered channel. Events are dropped for this
// subscriber while its buffer is full, so a slow reader never stalls a
// publisher; readers that see a gap should re-query.
func Channel[T any](h *Hub[T], buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)
	var mu sync.Mutex
	closed := false

	unsub := h.Subscribe(func(ev T) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- ev:
		default:
		}
	})

	return ch, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}
