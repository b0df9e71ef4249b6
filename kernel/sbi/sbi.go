// Package sbi is a thin gateway to the Supervisor Binary Interface firmware
// that runs underneath the kernel. Every exported function here issues a
// single ecall and assumes the firmware will honor it; SBI return codes are
// not surfaced to callers (see kernel.Error taxonomy in §7 of the design).
package sbi

// Extension and function identifiers used by this kernel. console_putchar
// and set_timer are the SBI v0.1 "legacy" extensions; shutdown uses the
// System Reset (SRST) extension from SBI v0.2+, which replaced the legacy
// eid=8 shutdown call. Mixing the two is intentional: every SBI firmware
// that implements SRST still implements the v0.1 legacy extensions for
// console/timer, and SRST is the only of the three that legacy firmware
// may lack, so this is the combination most likely to run unmodified on
// both QEMU's OpenSBI and real hardware.
const (
	legacyEIDConsolePutchar = 0x01
	legacyEIDSetTimer       = 0x00

	eidSRST          = 0x53525354
	fidSRSTReset     = 0x00
	resetTypeShutdown = 0x00
	resetReasonNone   = 0x00
)

// sbiCall issues a single ecall with the given extension/function IDs and up
// to three arguments, returning the firmware's (error, value) pair in a0/a1.
// Implemented in sbi_riscv64.s.
func sbiCall(eid, fid, arg0, arg1, arg2 uintptr) (uintptr, uintptr)

// ConsolePutChar writes a single byte to the SBI debug console.
func ConsolePutChar(c byte) {
	sbiCall(legacyEIDConsolePutchar, 0, uintptr(c), 0, 0)
}

// SetTimer schedules the next supervisor-timer interrupt to fire when the
// mtime counter reaches stamp.
func SetTimer(stamp uint64) {
	sbiCall(legacyEIDSetTimer, 0, uintptr(stamp), 0, 0)
}

// Shutdown powers off the machine via the System Reset extension. It does
// not return; a firmware that somehow declines the request leaves the
// caller spinning, since there is no recovery from a failed shutdown call.
func Shutdown() {
	sbiCall(eidSRST, fidSRSTReset, resetTypeShutdown, resetReasonNone, 0)
	for {
	}
}

// ConsoleWriter is an io.Writer that sends every byte through
// ConsolePutChar, one ecall at a time. It backs kfmt's output sink so that
// Printf/Panic reach the SBI debug console instead of the early ring
// buffer once boot has gotten far enough to make the call.
type ConsoleWriter struct{}

// Write implements io.Writer.
func (ConsoleWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		ConsolePutChar(b)
	}
	return len(p), nil
}
