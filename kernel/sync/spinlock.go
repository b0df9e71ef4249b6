// Package sync provides synchronization primitives for the kernel's
// process-wide singletons (frame allocator, task manager, kernel address
// space). The target is a single hart, so these exist to structure critical
// sections and to make debugging lock-ordering bugs tractable, not to
// arbitrate real multiprocessor contention.
package sync

import "sync/atomic"

var (
	// yieldFn is called by Acquire after a lock has been contended for a
	// while. Overridden by tests; on real hardware there is nothing
	// useful to yield to (the only other runnable thing is an interrupt
	// handler, which preempts regardless), so it is a no-op there.
	yieldFn = func() {}
)

// attemptsBeforeYielding bounds how many times Acquire spins before giving
// the yield hook a chance to run.
const attemptsBeforeYielding = 1000

// Spinlock implements a lock where each task trying to acquire it busy-waits
// until the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active
// task. Re-acquiring a lock already held by the current task deadlocks --
// the same restriction biscuit documents for its Vm_t mutex.
func (l *Spinlock) Acquire() {
	attempts := uint32(0)
	for !atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		attempts++
		if attempts >= attemptsBeforeYielding {
			attempts = 0
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if it
// succeeded.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock. Calling Release while the lock is free
// has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}
