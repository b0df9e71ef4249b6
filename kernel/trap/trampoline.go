package trap

import "sv39kernel/kernel/mem"

// trampolineAllTrapsAddr and trampolineRestoreAddr are implemented in
// trampoline_riscv64.s; they return the link-time address of __alltraps and
// __restore respectively. The trampoline code is position-known: it is
// linked at a physical address but executes at the fixed virtual address
// mem.TrampolineAddr in every address space, so any internal jump target
// must be expressed as an offset from __alltraps, never as an absolute
// link-time address (§4.4).
func trampolineAllTrapsAddr() uintptr
func trampolineRestoreAddr() uintptr

// restoreOffset is __restore's offset from __alltraps within the
// trampoline page, the only thing about __restore's location that survives
// the move from link address to mem.TrampolineAddr.
func restoreOffset() uintptr {
	return trampolineRestoreAddr() - trampolineAllTrapsAddr()
}

// trampolineJump loads a0=trapCtx, a1=userSatp and jumps to restoreVA. It
// never returns: control passes to __restore, which drops into user mode
// via sret.
func trampolineJump(restoreVA uintptr, trapCtx uint64, userSatp uint64)

// Return hands control back to the given task: it writes satp=userSatp,
// points stvec at the trampoline's user-trap entry, and jumps to
// __restore's virtual address, which loads ctx's saved registers and
// executes sret. It does not return to its caller.
func Return(ctx mem.VirtAddr, userSatp uint64) {
	SetUserTrapEntry()
	restoreVA := uintptr(mem.TrampolineAddr) + restoreOffset()
	trampolineJump(restoreVA, uint64(ctx), userSatp)
}

// dispatchEntryAddr returns the address Dispatch is reachable at, used to
// seed a freshly built TrapContext's TrapHandler field (trampoline_riscv64.s, on
// user-trap entry, jumps to whatever address that field holds).
func dispatchEntryAddr() uintptr

// DispatchEntry is the virtual address __alltraps jumps to after swapping
// into the kernel address space: the entry point of Dispatch.
func DispatchEntry() uint64 { return uint64(dispatchEntryAddr()) }
