package task

import (
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/trap"
)

// Switch is implemented in switch_riscv64.s: it saves ra, sp and the
// twelve callee-saved s-registers into *current, loads the same slots from
// *next, then executes a bare `ret`. Because the final instruction jumps
// to whatever ra it just loaded, Switch returns into whatever point *next
// last called Switch from -- or, for a task that has never run, into
// trapReturnThunk (§4.6).
func Switch(current, next *Context)

// trapReturnThunk takes the place of a raw jump to trap.Return in the
// context a freshly built task starts with: trap.Return needs the trap
// context's virtual address and the task's satp, and Switch's `ret` cannot
// supply call arguments, so the thunk fetches them through the same hooks
// trap.Dispatch uses.
func trapReturnThunk() {
	trap.Return(mem.TrapContextAddr, trap.CurrentUserSatpFn())
}

// trapReturnThunkAddr is implemented in switch_riscv64.s.
func trapReturnThunkAddr() uintptr

// NewTaskContext builds the context a task not yet run starts with: ra
// points at trapReturnThunk, sp is the bottom of the task's kernel stack.
func NewTaskContext(kernelSP mem.VirtAddr) Context {
	return NewContext(uint64(trapReturnThunkAddr()), uint64(kernelSP))
}
