// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import "sync"

// inbox is an unbounded FIFO of loop tasks. put never blocks, so engine and
// sink callbacks can post from any goroutine, including from inside a call
// the loop itself made.
type inbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	signal chan struct{}
}

func newInbox() *inbox {
	return &inbox{signal: make(chan struct{}, 1)}
}

func (q *inbox) put(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.queue = append(q.queue, fn)
	q.mu.Unlock()
	q.wake()
	return true
}

func (q *inbox) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *inbox) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// drain takes every queued task. closed is true once close has been called;
// tasks queued before close are still returned.
func (q *inbox) drain() (tasks []func(), closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks = q.queue
	q.queue = nil
	return tasks, q.closed
}
