// Package observable provides a latest-value broadcast container.
package observable

import (
	"context"
	"sync"
)

// Observable holds a value and broadcasts the latest one to subscribers.
// Slow subscribers miss intermediate values but always see the newest.
type Observable[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]chan T
	nextID int
	closed bool
	done   chan struct{}
}

func New[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial, subs: make(map[int]chan T), done: make(chan struct{})}
}

func (o *Observable[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set stores v and delivers it to every subscriber without blocking.
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.value = v
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Subscribe returns a channel that immediately yields the current value and
// then every newer one. It is closed when ctx is done or the observable is closed.
func (o *Observable[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = ch
	ch <- o.value
	o.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-o.done:
			return
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}()

	return ch
}

// Close closes all subscriber channels; later Sets are ignored.
func (o *Observable[T]) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.done)
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}
