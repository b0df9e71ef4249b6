package syscall

import (
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/vmm"
	"sv39kernel/kernel/timer"
	"sv39kernel/kernel/trap"
)

// sysGetTimeOfDay fills in the user-provided *TimeVal via the translated
// byte buffer helper, never dereferencing the user pointer directly
// (§4.7).
func sysGetTimeOfDay(ptr uint64) int {
	tv := timer.Value()
	raw := encodeTimeVal(tv)

	satp := trap.CurrentUserSatpFn()
	if !vmm.CopyOut(satp, mem.VirtAddr(ptr), raw[:]) {
		return -1
	}
	return 0
}

// encodeTimeVal lays out {sec, usec} as two little-endian int64 fields,
// matching the C struct timeval layout user code expects.
func encodeTimeVal(tv timer.TimeVal) [16]byte {
	var b [16]byte
	putInt64(b[0:8], tv.Sec)
	putInt64(b[8:16], tv.Usec)
	return b
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * uint(i)))
	}
}
