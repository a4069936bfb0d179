// Package queue provides the hand-off buffer between the feed subscriber,
// which pushes from the MQTT client goroutines, and the render loop, which
// drains it on every tick.
package queue

import (
	"sync"

	"github.com/luki/classmon/internal/sensor"
)

// Queue is an unbounded FIFO of readings safe for concurrent use.
// Every pushed reading is popped exactly once, in push order.
type Queue struct {
	mu    sync.Mutex
	items []sensor.Reading
	head  int
	wake  chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends a reading and signals the wake channel without blocking.
func (q *Queue) Push(r sensor.Reading) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Empty reports whether no readings are waiting.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of readings waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// TryPop removes the oldest reading. It never blocks.
func (q *Queue) TryPop() (sensor.Reading, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return sensor.Reading{}, false
	}
	r := q.items[q.head]
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return r, true
}

// DrainAll removes and returns every reading currently waiting, oldest first.
func (q *Queue) DrainAll() []sensor.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items) - q.head
	if n == 0 {
		return nil
	}
	out := make([]sensor.Reading, n)
	copy(out, q.items[q.head:])
	q.items = nil
	q.head = 0
	return out
}

// Wake returns a channel that receives after at least one Push since the
// last receive. It coalesces bursts into a single signal.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}
