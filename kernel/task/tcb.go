package task

import (
	"unsafe"

	"sv39kernel/kernel"
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/vmm"
	"sv39kernel/kernel/trap"
)

// Status is a TaskControlBlock's position in the state machine of §4.6:
// UnInit -> Ready -> Running -> {Ready, Exited}; Exited is terminal.
type Status int

const (
	UnInit Status = iota
	Ready
	Running
	Exited
)

func (s Status) String() string {
	switch s {
	case UnInit:
		return "UnInit"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Exited:
		return "Exited"
	default:
		return "unknown"
	}
}

// TaskControlBlock is everything the scheduler and trap dispatcher need to
// know about one task (§3).
type TaskControlBlock struct {
	ID     int
	Status Status

	Context Context

	MemorySet    *vmm.MemorySet
	TrapCtxPPN   mem.PhysPageNum
	UserStackTop mem.VirtAddr

	UserTimeTicks   uint64
	SystemTimeTicks uint64
}

// TrapContext returns a typed view of the task's trap-context page. It is
// only valid to call while the kernel address space (not this task's own)
// is active, since TrapCtxPPN is a physical page number the kernel
// identity-maps but a user address space does not.
func (t *TaskControlBlock) TrapContext() *trap.Context {
	return (*trap.Context)(unsafe.Pointer(&t.TrapCtxPPN.Bytes()[0]))
}

// newTaskControlBlock builds a task from an ELF image: it constructs the
// task's MemorySet (code/data/stack/trampoline/trap-context via
// vmm.NewFromELF), maps a private kernel stack for it in the kernel address
// space, and seeds the trap context the first switch-in will consume.
func newTaskControlBlock(id int, elfImage []byte, kernelSatp uint64) (*TaskControlBlock, *kernel.Error) {
	ms, userSP, entry, err := vmm.NewFromELF(elfImage)
	if err != nil {
		return nil, err
	}
	trapCtxPPN, ok := ms.TrapContextPPN()
	if !ok {
		return nil, errMissingTrapContext
	}

	kernelStackTop, kernelStackBottom := kernelStackRange(id)
	if err := mapKernelStack(id, kernelStackTop, kernelStackBottom); err != nil {
		return nil, err
	}

	tcb := &TaskControlBlock{
		ID:           id,
		Status:       Ready,
		Context:      NewTaskContext(kernelStackBottom),
		MemorySet:    ms,
		TrapCtxPPN:   trapCtxPPN,
		UserStackTop: userSP,
	}

	*tcb.TrapContext() = *trap.NewAppContext(
		entry,
		userSP,
		kernelSatp,
		kernelStackBottom,
		mem.VirtAddr(trap.DispatchEntry()),
	)
	return tcb, nil
}
