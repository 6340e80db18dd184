package event

import "sync"

// Queue is a double-buffered FIFO. Producers Push from any goroutine into the
// back buffer; the single consumer calls Swap once per cycle and reads the
// returned front buffer, which stays valid until the next Swap.
type Queue[T any] struct {
	mu    sync.Mutex // protects back only
	front []T
	back  []T
}

func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		front: make([]T, 0, capacity),
		back:  make([]T, 0, capacity),
	}
}

// Push appends an event to the back buffer (readable after the next Swap).
func (q *Queue[T]) Push(ev T) {
	q.mu.Lock()
	q.back = append(q.back, ev)
	q.mu.Unlock()
}

// Swap rotates back->front and returns the new front, oldest first.
// Consumer side only.
func (q *Queue[T]) Swap() []T {
	var zero T
	for i := range q.front {
		q.front[i] = zero // drop references held by the stale front
	}
	q.mu.Lock()
	q.front, q.back = q.back, q.front[:0]
	q.mu.Unlock()
	return q.front
}

// Pending returns the number of events waiting for the next Swap.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.back)
}

// Trim releases excess capacity of the front buffer. Consumer side only.
func (q *Queue[T]) Trim(keep int) {
	if cap(q.front) > keep && len(q.front) <= keep {
		front := make([]T, len(q.front), keep)
		copy(front, q.front)
		q.front = front
	}
}
