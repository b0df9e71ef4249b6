package task

import (
	"sv39kernel/kernel"
	"sv39kernel/kernel/kfmt"
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/vmm"
	"sv39kernel/kernel/sbi"
	"sv39kernel/kernel/sync"
	"sv39kernel/kernel/trap"
)

var errMissingTrapContext = &kernel.Error{Module: "task", Message: "elf image produced a memory set with no trap-context page"}

// manager is the TASK_MANAGER singleton of §4.6: the TCB table, the
// current-task index, and the kernel memory set tasks' stacks get mapped
// into, all behind one lock. Locks are never held across Switch -- every
// method below drops the lock before calling it.
type manager struct {
	sync.Spinlock

	tasks    []*TaskControlBlock
	current  int
	kernelMS *vmm.MemorySet

	idleContext Context // Switch's "current" slot while the scheduler itself runs
}

// TASK_MANAGER is the process-wide scheduler singleton.
var TASK_MANAGER manager

// kernelStackRange returns [top, bottom) for task id's private kernel
// stack: counting down from TRAMPOLINE in (KernelStackSize+PageSize)
// strides, the PageSize term leaving a one-page unmapped guard between
// adjacent stacks (§4.6).
func kernelStackRange(id int) (top, bottom mem.VirtAddr) {
	stride := uintptr(mem.KernelStackSize) + mem.PageSize
	top = mem.TrampolineAddr - mem.VirtAddr(uintptr(id+1)*stride)
	bottom = top + mem.VirtAddr(mem.KernelStackSize)
	return top, bottom
}

func mapKernelStack(id int, top, bottom mem.VirtAddr) *kernel.Error {
	seg := vmm.NewFramedSegment(top, bottom, vmm.FlagR|vmm.FlagW)
	return TASK_MANAGER.kernelMS.Push(seg, nil)
}

// Init installs the kernel memory set tasks' stacks are mapped into and
// builds one TCB per embedded ELF image, in the order given.
func Init(kernelMS *vmm.MemorySet, elfImages [][]byte) *kernel.Error {
	TASK_MANAGER.kernelMS = kernelMS
	kernelSatp := kernelMS.Token()

	for id, image := range elfImages {
		tcb, err := newTaskControlBlock(id, image, kernelSatp)
		if err != nil {
			return err
		}
		TASK_MANAGER.tasks = append(TASK_MANAGER.tasks, tcb)
	}
	wireTrapHooks()
	return nil
}

// wireTrapHooks connects trap.Dispatch's injected hooks to the scheduler,
// avoiding an import cycle between trap and task (trap is the lower
// layer and must not import task).
func wireTrapHooks() {
	trap.CurrentContextFn = func() *trap.Context { return current().TrapContext() }
	trap.ChargeUserTimeFn = func() { current().UserTimeTicks++ }
	trap.ChargeSystemTimeFn = func() { current().SystemTimeTicks++ }
	trap.MarkCurrentReadyFn = MarkCurrentReady
	trap.KillCurrentFn = KillCurrent
	trap.ScheduleFn = Schedule
	trap.CurrentUserSatpFn = func() uint64 { return current().MemorySet.Token() }
}

func current() *TaskControlBlock {
	return TASK_MANAGER.tasks[TASK_MANAGER.current]
}

// Run switches into the first Ready task. It never returns. The kernel
// address space is already active and the timer already armed by the time
// this is called (main.go activates both before building the TCB table,
// per §2's data flow), so Run itself does neither.
func Run() {
	TASK_MANAGER.current = 0
	TASK_MANAGER.tasks[0].Status = Running
	Switch(&TASK_MANAGER.idleContext, &TASK_MANAGER.tasks[0].Context)
	panic("task: Run's Switch returned")
}

// Schedule picks the next Ready task round-robin from current+1 and switches
// to it: control resumes inside the Schedule call that task last made (or,
// for a new task, in trapReturnThunk). Schedule returns to its own caller
// only when a later Schedule call switches back to the calling task, which
// never happens for a task that has exited. If no task is Ready, every task has either exited or
// (this scheduler has no blocking I/O) will never become Ready again, so
// the run is over: print accounting and shut down.
func Schedule() {
	TASK_MANAGER.Acquire()
	n := len(TASK_MANAGER.tasks)
	prev := TASK_MANAGER.current
	next := -1
	for i := 1; i <= n; i++ {
		idx := (prev + i) % n
		if TASK_MANAGER.tasks[idx].Status == Ready {
			next = idx
			break
		}
	}
	if next == -1 {
		TASK_MANAGER.Release()
		shutdown()
		return
	}

	TASK_MANAGER.tasks[next].Status = Running
	TASK_MANAGER.current = next
	prevCtx := &TASK_MANAGER.tasks[prev].Context
	nextCtx := &TASK_MANAGER.tasks[next].Context
	TASK_MANAGER.Release()

	Switch(prevCtx, nextCtx)
}

// MarkCurrentReady demotes the running task back to Ready (timer tick or
// voluntary yield).
func MarkCurrentReady() {
	TASK_MANAGER.Acquire()
	current().Status = Ready
	TASK_MANAGER.Release()
}

// KillCurrent marks the running task Exited. exitCode is recorded for
// diagnostics; this scheduler has no parent/wait relationship to deliver it
// to (Non-goal: process hierarchy).
func KillCurrent(exitCode int) {
	TASK_MANAGER.Acquire()
	t := current()
	t.Status = Exited
	kfmt.Printf("task %d exited with code %d\n", t.ID, exitCode)
	TASK_MANAGER.Release()
}

func shutdown() {
	var userTotal, sysTotal uint64
	for _, t := range TASK_MANAGER.tasks {
		userTotal += t.UserTimeTicks
		sysTotal += t.SystemTimeTicks
	}
	kfmt.Printf("all tasks exited: user=%d system=%d ticks\n", userTotal, sysTotal)
	sbi.Shutdown()
}
