package syscall

import "sv39kernel/kernel/task"

// sysExit marks the current task Exited and schedules the next Ready task
// (§4.7). It does not return to its caller: Dispatch's epilogue is never
// reached for this trap once Schedule switches away, since this task's ID
// will never be selected again.
func sysExit(code int) {
	task.KillCurrent(code)
	task.Schedule()
}

// sysYield marks the current task Ready and schedules the next one. Unlike
// sysExit, this call eventually returns: once some other task's trap
// reschedules this one, Schedule's Switch call returns right back here,
// and the syscall completes normally with a result of 0 (§4.7).
func sysYield() int {
	task.MarkCurrentReady()
	task.Schedule()
	return 0
}
