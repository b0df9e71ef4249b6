package trap

import "testing"

func TestClassifyCause(t *testing.T) {
	specs := []struct {
		name  string
		cause uint64
		want  causeKind
	}{
		{"timer", scauseInterruptBit | intSupervisorTimer, causeTimer},
		{"syscall", excUserEnvCall, causeSyscall},
		{"store fault", excStoreFault, causeFatalFault},
		{"store page fault", excStorePageFault, causeFatalFault},
		{"load fault", excLoadFault, causeFatalFault},
		{"load page fault", excLoadPageFault, causeFatalFault},
		{"instruction fault", excInstructionFault, causeFatalFault},
		{"instruction page fault", excInstructionPageFault, causeFatalFault},
		{"illegal instruction", excIllegalInstruction, causeFatalFault},
		{"breakpoint is unhandled", 3, causeUnknown},
		{"unrelated interrupt", scauseInterruptBit | 1, causeUnknown},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			if got := classifyCause(spec.cause); got != spec.want {
				t.Errorf("classifyCause(0x%x) = %v; want %v", spec.cause, got, spec.want)
			}
		})
	}
}

func TestContextSpAccessor(t *testing.T) {
	ctx := &Context{}
	ctx.X[2] = 0xdeadbeef
	if got := ctx.Sp(); got != 0xdeadbeef {
		t.Errorf("Sp() = 0x%x; want 0xdeadbeef", got)
	}
}
