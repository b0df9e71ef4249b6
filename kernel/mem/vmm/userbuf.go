package vmm

import "sv39kernel/kernel/mem"

// TranslatedByteBuffer returns a list of physical-byte slices covering the
// user virtual range [ptr, ptr+length) of the address space identified by
// satp, split at page boundaries. It is how syscalls read and write user
// memory without ever activating the user address space or dereferencing a
// user pointer directly from kernel context (§5 memory safety policy).
func TranslatedByteBuffer(satp uint64, ptr mem.VirtAddr, length int) ([][]byte, bool) {
	view := FromToken(satp)
	var out [][]byte

	start := ptr
	remaining := length
	for remaining > 0 {
		vpn := start.Floor()
		pte, ok := view.Translate(vpn)
		if !ok {
			return nil, false
		}
		pageStart := vpn.Addr()
		offset := uintptr(start) - uintptr(pageStart)
		avail := mem.PageSize - int(offset)
		n := remaining
		if n > avail {
			n = avail
		}

		pageBytes := pte.PPN().Bytes()
		out = append(out, pageBytes[offset:int(offset)+n])

		start += mem.VirtAddr(n)
		remaining -= n
	}
	return out, true
}

// CopyIn copies len(dst) bytes from user address ptr (in the address space
// satp) into dst. It returns false if any part of the range is unmapped.
func CopyIn(satp uint64, ptr mem.VirtAddr, dst []byte) bool {
	slices, ok := TranslatedByteBuffer(satp, ptr, len(dst))
	if !ok {
		return false
	}
	off := 0
	for _, s := range slices {
		off += copy(dst[off:], s)
	}
	return true
}

// CopyOut copies src into user address ptr (in the address space satp). It
// returns false if any part of the range is unmapped.
func CopyOut(satp uint64, ptr mem.VirtAddr, src []byte) bool {
	slices, ok := TranslatedByteBuffer(satp, ptr, len(src))
	if !ok {
		return false
	}
	off := 0
	for _, s := range slices {
		off += copy(s, src[off:])
	}
	return true
}
