package vmm

import (
	"reflect"
	"unsafe"
)

// ptesFromBytes overlays the 512 PTE slots of a table page on top of its
// raw byte view.
func ptesFromBytes(b []byte) []PTE {
	return *(*[]PTE)(unsafe.Pointer(&reflect.SliceHeader{
		Data: uintptr(unsafe.Pointer(&b[0])),
		Len:  len(b) / 8,
		Cap:  len(b) / 8,
	}))
}
