package goruntime

import (
	"reflect"
	"sv39kernel/kernel"
	"sv39kernel/kernel/mem"
	"testing"
	"unsafe"
)

func TestReserveHeapRegion(t *testing.T) {
	heapNext = 0x1000
	heapEnd = 0x1000 + 4*uintptr(mem.PageSizeB)

	defer func() {
		heapNext = 0
		heapEnd = 0
	}()

	start, err := reserveHeapRegion(2 * mem.PageSizeB)
	if err != nil {
		t.Fatalf("reserveHeapRegion: %v", err)
	}
	if start != 0x1000 {
		t.Fatalf("expected first reservation to start at 0x1000; got 0x%x", start)
	}
	if heapNext != 0x1000+2*uintptr(mem.PageSize) {
		t.Fatalf("expected heapNext to advance by the reserved size")
	}

	if _, err := reserveHeapRegion(3 * mem.PageSizeB); err == nil {
		t.Fatal("expected reservation beyond heapEnd to fail")
	}
}

func TestSysReserve(t *testing.T) {
	defer func() { reserveRegionFn = reserveHeapRegion }()
	var reserved bool

	t.Run("success", func(t *testing.T) {
		specs := []struct {
			reqSize       mem.Size
			expRegionSize mem.Size
		}{
			{100 << mem.PGSHIFT, 100 << mem.PGSHIFT},
			{2*mem.PageSizeB - 1, 2 * mem.PageSizeB},
		}

		for specIndex, spec := range specs {
			reserveRegionFn = func(rsvSize mem.Size) (uintptr, *kernel.Error) {
				if rsvSize != spec.expRegionSize {
					t.Errorf("[spec %d] expected reservation size to be %d; got %d", specIndex, spec.expRegionSize, rsvSize)
				}
				return 0xbadf00d, nil
			}

			ptr := sysReserve(nil, uintptr(spec.reqSize), &reserved)
			if uintptr(ptr) == 0 {
				t.Errorf("[spec %d] sysReserve returned 0", specIndex)
			}
		}
	})

	t.Run("fail", func(t *testing.T) {
		defer func() {
			if err := recover(); err == nil {
				t.Fatal("expected sysReserve to panic")
			}
		}()

		reserveRegionFn = func(rsvSize mem.Size) (uintptr, *kernel.Error) {
			return 0, &kernel.Error{Module: "test", Message: "heap region exhausted"}
		}

		sysReserve(nil, uintptr(0xf00), &reserved)
	})
}

func TestSysMap(t *testing.T) {
	defer func() { memsetFn = memset }()

	t.Run("zero fills the reserved region", func(t *testing.T) {
		var sysStat uint64
		var memsetCalls int
		var gotAddr uintptr
		var gotSize mem.Size

		memsetFn = func(addr uintptr, v byte, size mem.Size) {
			memsetCalls++
			gotAddr = addr
			gotSize = size
			if v != 0 {
				t.Errorf("expected sysMap to zero fill; got value %d", v)
			}
		}

		ret := sysMap(unsafe.Pointer(uintptr(0x2000)), uintptr(4*mem.PageSizeB), true, &sysStat)
		if uintptr(ret) != 0x2000 {
			t.Fatalf("expected sysMap to return the input address; got 0x%x", uintptr(ret))
		}
		if memsetCalls != 1 {
			t.Fatalf("expected exactly one memset call; got %d", memsetCalls)
		}
		if gotAddr != 0x2000 || gotSize != 4*mem.PageSizeB {
			t.Fatalf("unexpected memset args: addr=0x%x size=%d", gotAddr, gotSize)
		}
		if sysStat != uint64(4*mem.PageSizeB) {
			t.Fatalf("expected stat counter to be %d; got %d", uint64(4*mem.PageSizeB), sysStat)
		}
	})

	t.Run("panic if not reserved", func(t *testing.T) {
		defer func() {
			if err := recover(); err == nil {
				t.Fatal("expected sysMap to panic")
			}
		}()

		sysMap(nil, 0, false, nil)
	})
}

func TestSysAlloc(t *testing.T) {
	defer func() {
		reserveRegionFn = reserveHeapRegion
		memsetFn = memset
	}()

	t.Run("success", func(t *testing.T) {
		expRegionStartAddr := uintptr(10 * mem.PageSize)
		reserveRegionFn = func(_ mem.Size) (uintptr, *kernel.Error) {
			return expRegionStartAddr, nil
		}

		var memsetCalls int
		memsetFn = func(_ uintptr, _ byte, _ mem.Size) { memsetCalls++ }

		var sysStat uint64
		if got := sysAlloc(uintptr(4*mem.PageSizeB), &sysStat); uintptr(got) != expRegionStartAddr {
			t.Fatalf("expected sysAlloc to return 0x%x; got 0x%x", expRegionStartAddr, uintptr(got))
		}
		if memsetCalls != 1 {
			t.Fatalf("expected sysAlloc to zero fill exactly once; got %d calls", memsetCalls)
		}
		if sysStat != uint64(4*mem.PageSizeB) {
			t.Fatalf("expected stat counter to be %d; got %d", uint64(4*mem.PageSizeB), sysStat)
		}
	})

	t.Run("reservation fails", func(t *testing.T) {
		reserveRegionFn = func(_ mem.Size) (uintptr, *kernel.Error) {
			return 0, &kernel.Error{Module: "test", Message: "heap region exhausted"}
		}

		var sysStat uint64
		if got := sysAlloc(1, &sysStat); got != unsafe.Pointer(uintptr(0)) {
			t.Fatalf("expected sysAlloc to return 0x0 when reservation fails; got 0x%x", uintptr(got))
		}
	})
}

func TestGetRandomData(t *testing.T) {
	sample1 := make([]byte, 128)
	sample2 := make([]byte, 128)

	getRandomData(sample1)
	getRandomData(sample2)

	if reflect.DeepEqual(sample1, sample2) {
		t.Fatal("expected getRandomData to return different values for each invocation")
	}
}

func TestInit(t *testing.T) {
	defer func() {
		mallocInitFn = mallocInit
		algInitFn = algInit
		modulesInitFn = modulesInit
		typeLinksInitFn = typeLinksInit
		itabsInitFn = itabsInit
	}()

	mallocInitFn = func() {}
	algInitFn = func() {}
	modulesInitFn = func() {}
	typeLinksInitFn = func() {}
	itabsInitFn = func() {}

	if err := Init(0x10000, uintptr(mem.KernelHeapSize)); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if heapNext != 0x10000 {
		t.Fatalf("expected Init to set heapNext to the given start; got 0x%x", heapNext)
	}
}
