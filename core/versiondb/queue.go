package versiondb

import "sync/atomic"

// queuePair is the double-buffered request queue of one partition.
// Producers append to live under lock. The applier swaps live and flush under
// the same lock, then drains flush without holding it.
//
// swap and release must only be called by the partition's single applier.
type queuePair[T any] struct {
	lock    spinLock
	pending atomic.Int64 // len(live), readable without the lock
	live    []T
	flush   []T
}

func (q *queuePair[T]) enqueue(item T) {
	q.lock.Lock()
	q.live = append(q.live, item)
	q.pending.Add(1)
	q.lock.Unlock()
}

// swap exchanges the live and flush buffers if anything is pending and
// returns the batch to drain. The lock is held only for the exchange.
func (q *queuePair[T]) swap() []T {
	if q.pending.Load() == 0 {
		return q.flush
	}
	q.lock.Lock()
	if len(q.live) > 0 {
		q.live, q.flush = q.flush, q.live
		q.pending.Store(0)
	}
	q.lock.Unlock()
	return q.flush
}

// release empties the drained buffer so it can become the next live queue.
func (q *queuePair[T]) release() {
	clear(q.flush)
	q.flush = q.flush[:0]
}

// size returns the number of requests not yet released.
func (q *queuePair[T]) size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.live) + len(q.flush)
}
