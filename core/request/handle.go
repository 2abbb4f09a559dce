// Package request provides the one-shot completion handle shared by every
// queued request in the version database. A producer receives the handle
// immediately on enqueue; the partition applier completes it exactly once.
package request

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrAlreadyCompleted is returned when Complete is called on a finished handle.
var ErrAlreadyCompleted = errors.New("request already completed")

// Handle carries the completion state of a single request.
// Outputs written by the applier before Complete are visible to any
// goroutine that has observed Done.
type Handle struct {
	done     chan struct{}
	finished atomic.Bool
	err      error
}

// NewHandle returns a pending handle.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Complete records the outcome and releases every waiter.
// Only the first call has any effect.
func (h *Handle) Complete(err error) error {
	if !h.finished.CompareAndSwap(false, true) {
		return ErrAlreadyCompleted
	}
	h.err = err
	close(h.done)
	return nil
}

// Done is closed once the request has been applied.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Finished reports whether the request has been applied.
func (h *Handle) Finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the application error, or nil if the request succeeded or is
// still pending. Use Finished or Done to tell the two apart.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the request is applied or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
