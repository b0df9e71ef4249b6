// Package trap holds the saved user register file (TrapContext) and the
// trampoline/dispatcher machinery that bridges a user trap into the kernel
// and back (§4.4, §4.5).
package trap

import "sv39kernel/kernel/mem"

// sstatus.SPP selects the privilege level sret returns to.
const sstatusSPPUser = 0 << 8

// sstatus.FS selects the floating-point unit's state; Initial leaves it
// clean so the first trap return does not fault on FP state it never
// touched.
const sstatusFSInitial = 1 << 13

// Context is the trap-context page laid out exactly as the trampoline
// assembly expects to find it: 32 general-purpose registers at offset 0,
// followed by sstatus, sepc, and the three fields the kernel writes once at
// task creation and the trampoline reads on every trap entry/exit. One of
// these pages is mapped at mem.TrapContextAddr in every user address space.
type Context struct {
	X            [32]uint64 // x[2] is sp
	Sstatus      uint64
	Sepc         uint64
	KernelSatp   uint64
	KernelSp     uint64
	TrapHandler  uint64
}

// Sp returns the saved user stack pointer (x2).
func (c *Context) Sp() uint64 { return c.X[2] }

// NewAppContext builds the trap context a freshly created task's first
// __restore consumes to enter user mode at entry, with sp set to the top of
// its user stack. kernelSatp/kernelSp/trapHandler are written once and never
// change for the life of the task (§4.4).
func NewAppContext(entry, sp mem.VirtAddr, kernelSatp uint64, kernelSp mem.VirtAddr, trapHandler mem.VirtAddr) *Context {
	c := &Context{
		Sstatus:     sstatusSPPUser | sstatusFSInitial,
		Sepc:        uint64(entry),
		KernelSatp:  kernelSatp,
		KernelSp:    uint64(kernelSp),
		TrapHandler: uint64(trapHandler),
	}
	c.X[2] = uint64(sp)
	return c
}
