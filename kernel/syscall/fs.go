package syscall

import (
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/vmm"
	"sv39kernel/kernel/sbi"
	"sv39kernel/kernel/trap"
)

// sysWrite implements write(fd, buf, len): fd must be the console (1). The
// user buffer is never dereferenced directly -- it is split into physical
// byte slices by TranslatedByteBuffer and each byte is written to the SBI
// console individually (§4.7, §5 memory safety policy).
func sysWrite(fd int, bufPtr uint64, length int) int {
	if fd != 1 {
		return -1
	}

	satp := trap.CurrentUserSatpFn()
	slices, ok := vmm.TranslatedByteBuffer(satp, mem.VirtAddr(bufPtr), length)
	if !ok {
		return -1
	}

	for _, s := range slices {
		for _, b := range s {
			sbi.ConsolePutChar(b)
		}
	}
	return length
}
