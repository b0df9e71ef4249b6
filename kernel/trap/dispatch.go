package trap

import (
	"sv39kernel/kernel/kfmt"
	"sv39kernel/kernel/mem"
)

// scause's top bit marks the cause as an interrupt rather than an
// exception; the remaining bits are the cause code.
const scauseInterruptBit = uint64(1) << 63

// Exception codes (scause when the interrupt bit is clear).
const (
	excInstructionFault     = 1
	excIllegalInstruction   = 2
	excLoadFault            = 5
	excStoreFault           = 7
	excUserEnvCall          = 8
	excInstructionPageFault = 12
	excLoadPageFault        = 13
	excStorePageFault       = 15
)

// Interrupt codes (scause when the interrupt bit is set).
const intSupervisorTimer = 5

type causeKind int

const (
	causeSyscall causeKind = iota
	causeTimer
	causeFatalFault
	causeUnknown
)

// classifyCause maps a raw scause value onto the four policies §4.5 and §7
// distinguish. It is pure so the mapping can be tested without hardware.
func classifyCause(cause uint64) causeKind {
	switch {
	case cause == scauseInterruptBit|intSupervisorTimer:
		return causeTimer
	case cause == excUserEnvCall:
		return causeSyscall
	case cause == excStoreFault || cause == excStorePageFault ||
		cause == excLoadFault || cause == excLoadPageFault ||
		cause == excInstructionFault || cause == excInstructionPageFault ||
		cause == excIllegalInstruction:
		return causeFatalFault
	default:
		return causeUnknown
	}
}

func readScause() uint64
func readStval() uint64
func writeStvec(addr uintptr)
func enableSupervisorTimerInterrupt()
func kernelTrapEntryAddr() uintptr

// SetUserTrapEntry points stvec at the trampoline's virtual address, the
// same in every address space, so the hardware always lands in __alltraps
// regardless of which task is running.
func SetUserTrapEntry() {
	writeStvec(uintptr(mem.TrampolineAddr))
}

// SetKernelTrapEntry points stvec at a handler that panics unconditionally
// (§4.5 step 1, §7): the kernel never expects to take a trap while it is
// itself running.
func SetKernelTrapEntry() {
	writeStvec(kernelTrapEntryAddr())
}

func kernelTrapPanic() {
	kfmt.Panic("trap: nested trap while running in supervisor mode")
}

// EnableTimerPreemption unmasks the supervisor timer interrupt so the
// scheduler gets invoked on every tick (§4.6).
func EnableTimerPreemption() {
	enableSupervisorTimerInterrupt()
}

// Hooks wire the dispatcher to the task manager and syscall layer without
// either package importing trap's own importers back -- trap is the lowest
// layer that knows about Context, and everything above it (task, syscall)
// is free to import trap, so these stay as injected closures rather than
// direct calls, set once during boot: SyscallFn by main, the rest by
// task.Init.
var (
	// CurrentContextFn returns the running task's trap context.
	CurrentContextFn func() *Context
	// ChargeUserTimeFn/ChargeSystemTimeFn each add one to the running
	// task's user or system accumulator. The accumulators count these
	// trap-boundary charges; they do not measure elapsed timer ticks.
	ChargeUserTimeFn   func()
	ChargeSystemTimeFn func()
	// SyscallFn dispatches on x17 with args x10..x12 and returns the value
	// to place back into the trap context's x10.
	SyscallFn func(id uint64, args [3]uint64) uint64
	// MarkCurrentReadyFn demotes the running task to Ready (timer tick).
	MarkCurrentReadyFn func()
	// KillCurrentFn marks the running task Exited with the given code
	// (fault policy, §7).
	KillCurrentFn func(exitCode int)
	// ScheduleFn runs the scheduler and switches to the next Ready task.
	// It returns to its caller only once the calling task is switched back
	// in, which never happens for a task that has exited.
	ScheduleFn func()
	// CurrentUserSatpFn returns the running task's page-table token, used
	// to return to user mode via Return (trampoline.go).
	CurrentUserSatpFn func() uint64
)

// Dispatch is the kernel-side trap handler: the trap context's
// TrapHandler field holds its address, and __alltraps jumps here with the
// kernel stack installed and the kernel address space active (§4.5).
//
// It never returns in the ordinary sense: it ends by calling Return, which
// does not return to its caller. On the timer path ScheduleFn comes back
// only when this task is next scheduled, and Dispatch then continues to that
// same epilogue; a task killed on the fault path is never scheduled again.
func Dispatch() {
	SetKernelTrapEntry()
	ChargeUserTimeFn()

	ctx := CurrentContextFn()
	cause := readScause()

	switch classifyCause(cause) {
	case causeTimer:
		Timer.ScheduleNextTick()
		MarkCurrentReadyFn()
		ChargeSystemTimeFn()
		ScheduleFn()

	case causeSyscall:
		ctx.Sepc += 4
		ctx.X[10] = SyscallFn(ctx.X[17], [3]uint64{ctx.X[10], ctx.X[11], ctx.X[12]})

	case causeFatalFault:
		kfmt.Printf("trap: fatal fault in current task (scause=%d stval=0x%x), killing it\n", cause, readStval())
		KillCurrentFn(1)
		ChargeSystemTimeFn()
		ScheduleFn()

	default:
		kfmt.Panic("trap: unhandled scause")
	}

	ChargeSystemTimeFn()
	SetUserTrapEntry()
	Return(mem.TrapContextAddr, CurrentUserSatpFn())
}

// Timer is wired by the timer package (C12) once it is initialized;
// declared here so Dispatch can call it without importing timer: timer
// imports trap to install itself here, so the reverse import would cycle.
var Timer interface {
	ScheduleNextTick()
}
