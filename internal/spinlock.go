package internal

import (
	"runtime"
	"sync/atomic"
)

const maxBackoff = 16

// SpinLock is a sync.Locker that yields with exponential backoff while contended.
// The zero value is unlocked.
type SpinLock struct {
	state atomic.Int32
}

func (sl *SpinLock) Lock() {
	backoff := 1
	for !sl.TryLock() {
		for i := 0; i < backoff; i++ {
			runtime.Gosched()
		}
		if backoff < maxBackoff {
			backoff <<= 1
		}
	}
}

// TryLock acquires the lock without waiting and reports whether it succeeded.
func (sl *SpinLock) TryLock() bool {
	return sl.state.CompareAndSwap(0, 1)
}

func (sl *SpinLock) Unlock() {
	sl.state.Store(0)
}
