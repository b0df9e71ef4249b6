// Package pmm hands out and reclaims physical page frames from
// [ekernel .. MemoryEnd), the physical memory past the end of the kernel
// image.
package pmm

import (
	"sv39kernel/kernel"
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/sync"
)

var errOutOfMemory = &kernel.Error{Module: "pmm", Message: "frame allocator exhausted"}

// stackFrameAllocator is a bump-pointer allocator over [start, end) with a
// stack of freed frames for reuse. It is the only physical frame allocator
// this kernel has; there is no intermediate boot allocator because the
// kernel's own identity-mapped region is enough to bootstrap everything
// else (unlike a kernel that must also allocate before its own address
// space exists).
type stackFrameAllocator struct {
	sync.Spinlock

	current mem.PhysPageNum
	end     mem.PhysPageNum
	recycled []mem.PhysPageNum
}

var allocator stackFrameAllocator

// Init bounds the allocator to [start, end). Boot calls this exactly once,
// after the heap is up and before any call to Alloc; it is also safe to
// call again, which is how tests get a clean allocator between cases.
func Init(start, end mem.PhysPageNum) *kernel.Error {
	allocator.Acquire()
	defer allocator.Release()

	allocator.current = start
	allocator.end = end
	allocator.recycled = nil
	return nil
}

// Alloc reserves one physical frame and returns it wrapped in a FrameTracker,
// whose contents are guaranteed to read as all zeros.
func Alloc() (*FrameTracker, *kernel.Error) {
	ppn, err := allocFrame()
	if err != nil {
		return nil, err
	}
	return newFrameTracker(ppn), nil
}

func allocFrame() (mem.PhysPageNum, *kernel.Error) {
	allocator.Acquire()
	defer allocator.Release()

	if n := len(allocator.recycled); n > 0 {
		ppn := allocator.recycled[n-1]
		allocator.recycled = allocator.recycled[:n-1]
		return ppn, nil
	}
	if allocator.current >= allocator.end {
		return 0, errOutOfMemory
	}
	ppn := allocator.current
	allocator.current++
	return ppn, nil
}

// dealloc returns ppn to the recycled list. It panics on double-free or on
// a frame that was never handed out by this allocator -- both are kernel
// invariant violations, not runtime conditions (§7).
func dealloc(ppn mem.PhysPageNum) {
	allocator.Acquire()
	defer allocator.Release()

	if ppn >= allocator.current {
		panic("pmm: dealloc of frame never allocated")
	}
	for _, r := range allocator.recycled {
		if r == ppn {
			panic("pmm: double free of frame")
		}
	}
	allocator.recycled = append(allocator.recycled, ppn)
}

// FrameTracker is the exclusive owner of one physical frame. Its contents
// are zeroed on construction; dropping it (via Drop) returns the frame to
// the allocator. Every allocated frame is owned by exactly one tracker.
type FrameTracker struct {
	PPN mem.PhysPageNum
}

func newFrameTracker(ppn mem.PhysPageNum) *FrameTracker {
	buf := ppn.Bytes()
	for i := range buf {
		buf[i] = 0
	}
	return &FrameTracker{PPN: ppn}
}

// Drop releases the frame back to the allocator. After Drop, the
// FrameTracker must not be used again; the kernel relies on Go's ownership
// discipline (each FrameTracker is held by exactly one Segment or PageTable
// entry list) rather than a finalizer to guarantee this.
func (f *FrameTracker) Drop() {
	if f == nil {
		return
	}
	dealloc(f.PPN)
}
