// Package goruntime bootstraps Go runtime features -- principally the
// memory allocator -- on top of the kernel's own virtual memory subsystem,
// by redirecting the runtime's low-level sys* hooks via go:linkname.
package goruntime

import (
	"sv39kernel/kernel"
	"sv39kernel/kernel/mem"
	"unsafe"
)

var (
	reserveRegionFn = reserveHeapRegion
	memsetFn        = memset
	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit

	// A seed for the pseudo-random number generator used by getRandomData.
	prngSeed = 0xdeadc0de
)

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()

//go:linkname mSysStatInc runtime.mSysStatInc
func mSysStatInc(*uint64, uintptr)

var errHeapExhausted = &kernel.Error{Module: "goruntime", Message: "kernel heap region exhausted"}

// memset adapts kernel.Memset, which takes a uintptr length, to the mem.Size
// lengths the sys* functions below work in.
func memset(addr uintptr, value byte, size mem.Size) {
	kernel.Memset(addr, value, uintptr(size))
}

// heapNext/heapEnd bound the bump allocator backing sysReserve/sysAlloc. The
// region they carve from is the one Init is given (main passes its static
// heapSpace array, which lies in .bss and so inside the [sbss, ebss) range
// NewKernel identity-maps R|W): a virtual address here is its
// own physical address, so reserving a region is the only step needed --
// there is no separate page-table mapping to install the way a kernel with
// a non-identity heap would need.
var (
	heapNext uintptr
	heapEnd  uintptr
)

func reserveHeapRegion(size mem.Size) (uintptr, *kernel.Error) {
	aligned := (size + mem.PageSizeB - 1) &^ (mem.PageSizeB - 1)
	if heapNext+uintptr(aligned) > heapEnd {
		return 0, errHeapExhausted
	}
	start := heapNext
	heapNext += uintptr(aligned)
	return start, nil
}

// sysReserve reserves address space without establishing any new mapping --
// the kernel heap region is already mapped by NewKernel.
//
// This function replaces runtime.sysReserve and is required for initializing
// the Go allocator.
//
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr, reserved *bool) unsafe.Pointer {
	regionSize := (mem.Size(size) + mem.PageSizeB - 1) &^ (mem.PageSizeB - 1)
	start, err := reserveRegionFn(regionSize)
	if err != nil {
		panic(err)
	}

	*reserved = true
	return unsafe.Pointer(start)
}

// sysMap zero-fills a region reserved previously via sysReserve. It never
// installs a new mapping: the region is already backed by the kernel's
// identity mapping of [sbss, ebss).
//
// This function replaces runtime.sysMap and is required for initializing the
// Go allocator.
//
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, reserved bool, sysStat *uint64) unsafe.Pointer {
	if !reserved {
		panic("sysMap should only be called with reserved=true")
	}

	memsetFn(uintptr(virtAddr), 0, mem.Size(size))
	mSysStatInc(sysStat, size)
	return virtAddr
}

// sysAlloc reserves enough of the kernel heap region to satisfy the
// allocation request and zero-fills it.
//
// This function replaces runtime.sysAlloc and is required for initializing
// the Go allocator.
//
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	start, err := reserveRegionFn(mem.Size(size))
	if err != nil {
		return unsafe.Pointer(uintptr(0))
	}

	memsetFn(start, 0, mem.Size(size))
	mSysStatInc(sysStat, size)
	return unsafe.Pointer(start)
}

// nanotime returns a monotonically increasing clock value. This is a dummy
// implementation; the timer package (C12) owns the real tick source.
//
// This function replaces runtime.nanotime and is invoked by the Go allocator
// when a span allocation is performed.
//
//go:nosplit
func nanotime() uint64 {
	// Dummy loop to prevent the compiler from inlining this function.
	for i := 0; i < 100; i++ {
	}
	return 1
}

// getRandomData populates the given slice with random data. The runtime
// normally reads a random stream from the OS; there is none here, so a PRNG
// stands in.
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

// Init enables support for various Go runtime features. After a call to
// Init the following runtime features become available for use:
//   - heap memory allocation (new, make, etc)
//   - map primitives
//   - interfaces
//
// heapStart/heapSize bound the region Init reserves the heap from; the
// caller passes the bounds of its KernelHeapSize-byte heapSpace array.
func Init(heapStart, heapSize uintptr) *kernel.Error {
	heapNext = heapStart
	heapEnd = heapStart + heapSize

	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules

	return nil
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var (
		reserved bool
		stat     uint64
		zeroPtr  = unsafe.Pointer(uintptr(0))
	)

	heapEnd = ^uintptr(0)
	sysReserve(zeroPtr, 0, &reserved)
	sysMap(zeroPtr, 0, reserved, &stat)
	sysAlloc(0, &stat)
	getRandomData(nil)
	stat = nanotime()
}
