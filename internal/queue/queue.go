package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidCapacity = errors.New("queue capacity must be at least 1")

// DropOldest is a fixed-capacity FIFO. Push never blocks: when the queue is
// full the oldest item is evicted to make room for the new one.
type DropOldest[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	size  int

	ready   chan struct{}
	pushed  atomic.Uint64
	dropped atomic.Uint64
}

func New[T any](capacity int) (*DropOldest[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &DropOldest[T]{
		items: make([]T, capacity),
		ready: make(chan struct{}, 1),
	}, nil
}

// Push inserts item, evicting the oldest retained item first if the queue
// is at capacity. It reports whether an item was evicted.
func (q *DropOldest[T]) Push(item T) bool {
	q.mu.Lock()
	evicted := false
	if q.size == len(q.items) {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
		evicted = true
	}
	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++
	q.mu.Unlock()

	q.pushed.Add(1)
	if evicted {
		q.dropped.Add(1)
	}
	q.signal()
	return evicted
}

// TryPop returns the oldest item without waiting.
func (q *DropOldest[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	if q.size > 0 {
		q.signal()
	}
	return item, true
}

// Pop waits up to timeout for an item. A false result means nothing arrived
// in time or ctx was cancelled; callers re-check their cancellation and loop.
func (q *DropOldest[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	if item, ok := q.TryPop(); ok {
		return item, true
	}
	var zero T
	if ctx.Err() != nil {
		return zero, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return zero, false
		case <-timer.C:
			return q.TryPop()
		case <-q.ready:
			if item, ok := q.TryPop(); ok {
				return item, true
			}
		}
	}
}

// Drain empties the queue and returns its items oldest first.
func (q *DropOldest[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.size)
	var zero T
	for q.size > 0 {
		out = append(out, q.items[q.head])
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
	}
	return out
}

func (q *DropOldest[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *DropOldest[T]) Cap() int {
	return len(q.items)
}

func (q *DropOldest[T]) Pushed() uint64 {
	return q.pushed.Load()
}

// Dropped counts items evicted by Push.
func (q *DropOldest[T]) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *DropOldest[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
