// Package timer reads the platform tick counter and schedules the next
// preemption interrupt (C12).
package timer

import (
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/sbi"
	"sv39kernel/kernel/trap"
)

// ticksPerInterval is how many timer ticks elapse between preemptions:
// ClockFreq/TicksPerSec ticks, i.e. one interrupt every 1/TicksPerSec
// second (§6).
const ticksPerInterval = mem.ClockFreq / mem.TicksPerSec

// tickScheduler adapts ScheduleNextTick to trap.Timer's interface; trap
// cannot import this package (it would cycle back through sbi/mem no
// differently, but the real reason is layering: trap is the lowest layer
// and every other subsystem is free to import it, never the reverse).
type tickScheduler struct{}

func (tickScheduler) ScheduleNextTick() { ScheduleNextTick() }

func init() {
	trap.Timer = tickScheduler{}
}

// readTime is implemented in timer_riscv64.s; it reads the unprivileged
// `time` CSR, which RISC-V firmware keeps in sync with the platform timer.
func readTime() uint64

// Now returns the current tick count.
func Now() uint64 { return readTime() }

// ScheduleNextTick arms the timer for one more preemption interval from
// now via the SBI set_timer call. Wired as trap.Timer so the dispatcher
// can call it without trap importing this package.
func ScheduleNextTick() {
	sbi.SetTimer(readTime() + ticksPerInterval)
}

// TimeVal is the {sec, usec} pair sys_gettimeofday writes into user memory
// (§4.7, §6).
type TimeVal struct {
	Sec  int64
	Usec int64
}

// Value converts the current tick count into a TimeVal using the platform
// clock frequency.
func Value() TimeVal {
	ticks := Now()
	return TimeVal{
		Sec:  int64(ticks / mem.ClockFreq),
		Usec: int64((ticks % mem.ClockFreq) * 1_000_000 / mem.ClockFreq),
	}
}
