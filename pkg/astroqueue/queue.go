package astroqueue

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrEmpty  = errors.New("queue is empty")
	ErrClosed = errors.New("queue is closed")
)

// Queue is an unbounded FIFO that hands items from producers to a single consumer.
//
// The consumer observes the head with PopBlocking, attempts its work, and only then
// removes the head with Acknowledge. If the work fails the head stays in place and is
// returned again by the next PopBlocking.
//
// Only one goroutine may consume. Two consumers would observe the same head and both
// deliver it.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the tail and wakes at most one waiting consumer.
// It never blocks on the consumer. Pushing to a closed queue returns ErrClosed.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// PopBlocking waits until the queue holds an item and returns the head without
// removing it. ok is false when the queue was closed while empty.
func (q *Queue[T]) PopBlocking() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return item, false
	}
	return q.items[0], true
}

// PopBlockingContext is PopBlocking that gives up when ctx ends.
func (q *Queue[T]) PopBlockingContext(ctx context.Context) (T, error) {
	var zero T

	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if len(q.items) > 0 {
		return q.items[0], nil
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, ErrClosed
}

// Acknowledge removes the head. Call it only after the item returned by the most
// recent PopBlocking has been handled successfully.
func (q *Queue[T]) Acknowledge() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return ErrEmpty
	}
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return nil
}

// Len reports the number of items still waiting, including an unacknowledged head.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close releases every blocked consumer. Items already queued stay readable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
