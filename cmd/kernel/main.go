// Command kernel is the sv39 kernel's entry point: the Go-visible half of
// the boot ABI (§6). A boot stub outside this repo's scope (§1) clears bss
// and lands here with the Go runtime otherwise uninitialized; main is the
// only symbol that stub calls, and it never returns.
package main

import (
	"unsafe"

	"sv39kernel/kernel"
	"sv39kernel/kernel/goruntime"
	"sv39kernel/kernel/kfmt"
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/pmm"
	"sv39kernel/kernel/mem/vmm"
	"sv39kernel/kernel/sbi"
	"sv39kernel/kernel/syscall"
	"sv39kernel/kernel/task"
	"sv39kernel/kernel/timer"
	"sv39kernel/kernel/trap"
)

// heapSpace backs the Go allocator goruntime bootstraps (C13). It lives in
// the kernel's own .bss, inside the [sbss,ebss) range NewKernel identity-
// maps R|W, rather than being carved out of the frame-allocator's region --
// the two never compete for the same bytes.
var heapSpace [mem.KernelHeapSize]byte

func main() {
	kfmt.SetOutputSink(sbi.ConsoleWriter{})

	if err := goruntime.Init(uintptr(unsafe.Pointer(&heapSpace[0])), uintptr(len(heapSpace))); err != nil {
		kfmt.Panic(err)
	}

	kfmt.Printf("sv39kernel: heap up, %d bytes\n", len(heapSpace))

	if err := pmm.Init(mem.PhysAddr(mem.Ekernel()).Floor(), mem.MemoryEnd.Floor()); err != nil {
		kfmt.Panic(err)
	}

	kernelMS, err := vmm.NewKernel()
	if err != nil {
		kfmt.Panic(err)
	}
	kernelMS.Activate()

	// trap.SyscallFn is wired here rather than in task.wireTrapHooks: the
	// syscall package sits above task (sys_exit/sys_yield call back into
	// the scheduler), so trap<-syscall is the only direction that avoids
	// an import cycle, and only this top-level package is free to import
	// both.
	trap.SyscallFn = syscall.Dispatch

	// Paging must be live (kernelMS.Activate above) before stvec points at
	// the virtual TRAMPOLINE address and before the timer is armed: §2's
	// data flow is build kernel memory-set -> activate kernel page table ->
	// install trap vector -> enable timer -> build TCB table, in that
	// order, so a tick during ELF loading below can never trap into an
	// address that only resolves under sv39 translation.
	trap.SetUserTrapEntry()
	trap.EnableTimerPreemption()
	timer.ScheduleNextTick()

	images, lerr := loadAppImages()
	if lerr != nil {
		kfmt.Panic(lerr)
	}
	kfmt.Printf("sv39kernel: %d app image(s) embedded\n", len(images))

	if err := task.Init(kernelMS, images); err != nil {
		kfmt.Panic(err)
	}

	kfmt.Printf("sv39kernel: launched\n")
	task.Run()

	kfmt.Panic(&kernel.Error{Module: "main", Message: "task.Run returned"})
}
