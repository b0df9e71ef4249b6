package vmm

import (
	"bytes"
	"debug/elf"

	"sv39kernel/kernel"
	"sv39kernel/kernel/mem"
)

var (
	errBadELF = &kernel.Error{Module: "vmm", Message: "malformed ELF image"}
)

// MemorySet is one address space: a PageTable plus the ordered list of
// Segments that populate it.
type MemorySet struct {
	PageTable *PageTable
	Segments  []*Segment
}

// NewBare creates a fresh MemorySet with no segments.
func NewBare() (*MemorySet, *kernel.Error) {
	pt, err := New()
	if err != nil {
		return nil, err
	}
	return &MemorySet{PageTable: pt}, nil
}

// MapTrampoline installs the single non-framed mapping every address space
// carries at the highest virtual page: TrampolineAddr -> the physical page
// the trampoline code was linked at, R|X, no U bit. It is the same mapping
// in every address space, which is exactly what lets the trampoline code
// keep executing uninterrupted across the satp write (§4.4).
func (ms *MemorySet) MapTrampoline() *kernel.Error {
	trampolinePPN := mem.PhysAddr(mem.Strampoline()).Floor()
	return ms.PageTable.Map(mem.TrampolineAddr.Floor(), trampolinePPN, FlagR|FlagX)
}

// Push maps every page of seg into the table and, if data is non-nil,
// copies it into the freshly mapped frames page by page, zero-filling any
// remainder. seg is retained for the lifetime of the MemorySet.
func (ms *MemorySet) Push(seg *Segment, data []byte) *kernel.Error {
	if err := seg.MapAll(ms.PageTable); err != nil {
		return err
	}
	ms.Segments = append(ms.Segments, seg)

	if data == nil {
		return nil
	}
	copied := 0
	for vpn := seg.Range.Start; vpn < seg.Range.End && copied < len(data); vpn++ {
		pte, ok := ms.PageTable.Translate(vpn)
		if !ok {
			return errBadELF
		}
		dst := pte.PPN().Bytes()
		n := copy(dst, data[copied:])
		for i := n; i < len(dst); i++ {
			dst[i] = 0
		}
		copied += n
	}
	return nil
}

// Token returns the satp value that activates this address space.
func (ms *MemorySet) Token() uint64 { return ms.PageTable.Token() }

// Activate writes this MemorySet's token to satp and flushes the TLB. It is
// only ever safe to call while running in the kernel's own identity-mapped
// region, since the instruction stream must stay reachable across the
// switch.
func (ms *MemorySet) Activate() {
	writeSatpAndFence(ms.Token())
}

// writeSatpAndFence is implemented in satp_riscv64.s: `csrw satp, a0;
// sfence.vma`.
func writeSatpAndFence(satp uint64)

// NewKernel builds the kernel address space: the trampoline, followed by
// identical mappings of every linker-delimited section with the
// permissions that section needs, plus the entire region the frame
// allocator may hand out (so the kernel can always dereference a frame it
// just allocated).
func NewKernel() (*MemorySet, *kernel.Error) {
	ms, err := NewBare()
	if err != nil {
		return nil, err
	}
	if err := ms.MapTrampoline(); err != nil {
		return nil, err
	}

	sections := []struct {
		start, end uintptr
		perm       PTEFlag
	}{
		{mem.Stext(), mem.Etext(), FlagR | FlagX},
		{mem.Srodata(), mem.Erodata(), FlagR},
		{mem.Sdata(), mem.Edata(), FlagR | FlagW},
		{mem.Sbss(), mem.Ebss(), FlagR | FlagW},
		{mem.Ekernel(), uintptr(mem.MemoryEnd), FlagR | FlagW},
	}
	for _, s := range sections {
		seg := NewIdenticalSegment(mem.VirtAddr(s.start), mem.VirtAddr(s.end), s.perm)
		if err := ms.Push(seg, nil); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// elfPermToPTE derives sv39 leaf flags from an ELF program header's p_flags,
// always setting the U bit since this is only ever called for user
// segments.
func elfPermToPTE(flags elf.ProgFlag) PTEFlag {
	perm := FlagU
	if flags&elf.PF_R != 0 {
		perm |= FlagR
	}
	if flags&elf.PF_W != 0 {
		perm |= FlagW
	}
	if flags&elf.PF_X != 0 {
		perm |= FlagX
	}
	return perm
}

// NewFromELF validates the ELF magic, maps one Framed segment per PT_LOAD
// program header (copying in p_filesz bytes and zeroing the rest), then
// lays out a guard page, the user stack, the trampoline, and the
// trap-context page. It returns the new MemorySet, the initial user stack
// pointer, and the entry point.
func NewFromELF(image []byte) (ms *MemorySet, userSP mem.VirtAddr, entry mem.VirtAddr, rerr *kernel.Error) {
	if len(image) < 4 || !bytes.Equal(image[:4], []byte{0x7f, 'E', 'L', 'F'}) {
		return nil, 0, 0, errBadELF
	}

	f, ferr := elf.NewFile(bytes.NewReader(image))
	if ferr != nil {
		return nil, 0, 0, errBadELF
	}

	ms, err := NewBare()
	if err != nil {
		return nil, 0, 0, err
	}

	var maxVPN mem.VirtPageNum
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		start := mem.VirtAddr(prog.Vaddr)
		end := start + mem.VirtAddr(prog.Memsz)
		seg := NewFramedSegment(start, end, elfPermToPTE(prog.Flags))

		data := make([]byte, prog.Filesz)
		if _, rerr := prog.ReadAt(data, 0); rerr != nil {
			return nil, 0, 0, errBadELF
		}
		if err := ms.Push(seg, data); err != nil {
			return nil, 0, 0, err
		}
		if seg.Range.End > maxVPN {
			maxVPN = seg.Range.End
		}
	}

	// One guard page, then the user stack.
	userStackBottom := maxVPN.Addr() + mem.VirtAddr(mem.PageSize)
	userStackTop := userStackBottom + mem.VirtAddr(mem.UserStackSize)
	stackSeg := NewFramedSegment(userStackBottom, userStackTop, FlagR|FlagW|FlagU)
	if err := ms.Push(stackSeg, nil); err != nil {
		return nil, 0, 0, err
	}

	if err := ms.MapTrampoline(); err != nil {
		return nil, 0, 0, err
	}

	trapCtxSeg := NewFramedSegment(mem.TrapContextAddr, mem.TrampolineAddr, FlagR|FlagW)
	if err := ms.Push(trapCtxSeg, nil); err != nil {
		return nil, 0, 0, err
	}

	return ms, userStackTop, mem.VirtAddr(f.Entry), nil
}

// TrapContextPPN returns the physical page backing this address space's
// trap-context page, which the owning TaskControlBlock caches so it can
// reach the saved register file without walking the page table on every
// trap.
func (ms *MemorySet) TrapContextPPN() (mem.PhysPageNum, bool) {
	pte, ok := ms.PageTable.Translate(mem.TrapContextAddr.Floor())
	if !ok {
		return 0, false
	}
	return pte.PPN(), true
}
