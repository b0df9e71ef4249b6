package mem

import (
	"reflect"
	"unsafe"
)

// unsafeBytes overlays a byte slice on top of an arbitrary memory address.
// Mirrors the SliceHeader trick used throughout this kernel's memory-
// management code (see kernel.Memset) wherever a raw pointer needs a slice
// view without going through the Go allocator.
func unsafeBytes(addr uintptr, size int) []byte {
	return *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: addr,
		Len:  size,
		Cap:  size,
	}))
}
