package versiondb

import (
	"runtime"
	"sync/atomic"
)

// spinLock is a busy-wait mutex for critical sections that last a few field
// writes. It yields to the scheduler after a short spin so a descheduled
// holder cannot starve waiters.
type spinLock struct {
	state atomic.Int32
}

const spinsBeforeYield = 64

func (l *spinLock) Lock() {
	for spins := 0; !l.state.CompareAndSwap(0, 1); spins++ {
		if spins >= spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

func (l *spinLock) Unlock() {
	l.state.Store(0)
}
