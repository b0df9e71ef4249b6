// Package task implements the round-robin task scheduler: per-task control
// blocks, the kernel-side context switch, and the TASK_MANAGER singleton
// (§4.6, C9, C10).
package task

// Context is the minimal kernel-side state needed to suspend one task
// inside the kernel and resume another: the return address, the stack
// pointer, and the twelve callee-saved registers a Go-assembly leaf routine
// must preserve across a call.
type Context struct {
	Ra uint64
	Sp uint64
	S  [12]uint64
}

// NewContext builds the context a brand-new task's first switch-in lands
// on. ra is trap.Return's entry (via trapReturnThunk, see switch.go): since
// a fresh task's saved ra points there, the very first Switch to it falls
// straight through trap_return and into user mode at the ELF entry (§4.6).
func NewContext(ra, kernelSP uint64) Context {
	return Context{Ra: ra, Sp: kernelSP}
}
