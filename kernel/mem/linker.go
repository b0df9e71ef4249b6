package mem

// Linker-provided symbols (§6, consumed). The boot linker script places
// these at fixed physical addresses; none of them are ordinary Go data, so
// each is exposed as a function that resolves to the symbol's link-time
// address (implemented in linker_riscv64.s as `MOV $symbol(SB), Rn`
// sequences, the same trick used to read rt0-provided addresses before any
// Go heap exists). The kernel never reads through these as data -- only
// their addresses are meaningful.
func Stext() uintptr
func Etext() uintptr
func Srodata() uintptr
func Erodata() uintptr
func Sdata() uintptr
func Edata() uintptr
func Sbss() uintptr
func Ebss() uintptr
func Ekernel() uintptr
func Strampoline() uintptr
