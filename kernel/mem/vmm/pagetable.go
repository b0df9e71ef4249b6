package vmm

import (
	"sv39kernel/kernel"
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/pmm"
)

var (
	errNotMapped       = &kernel.Error{Module: "vmm", Message: "virtual page not mapped"}
	errOwningViewWrite = &kernel.Error{Module: "vmm", Message: "non-owning page table used for map/unmap"}
)

// satpModeSv39 is the mode field value (bits 63..60) that selects sv39
// paging in the supervisor address-translation-and-protection register.
const satpModeSv39 = uint64(8) << 60

// PageTable is a 3-level sv39 page table: a root PPN plus, for an owning
// table, the list of FrameTrackers the table itself allocated for interior
// nodes. A PageTable built via FromToken is a non-owning read-only view and
// keeps no FrameTrackers.
type PageTable struct {
	Root   mem.PhysPageNum
	frames []*pmm.FrameTracker
	owning bool
}

// New creates a fresh page table with one freshly allocated, zeroed root
// frame.
func New() (*PageTable, *kernel.Error) {
	root, err := pmm.Alloc()
	if err != nil {
		return nil, err
	}
	return &PageTable{Root: root.PPN, frames: []*pmm.FrameTracker{root}, owning: true}, nil
}

// FromToken builds a non-owning view of an existing table for read-only
// translation. It must never be used to Map or Unmap.
func FromToken(satp uint64) *PageTable {
	return &PageTable{Root: mem.PhysPageNum(satp & ((1 << 44) - 1)), owning: false}
}

// Token returns the satp register value that selects this table: sv39 mode
// plus the root PPN.
func (pt *PageTable) Token() uint64 {
	return satpModeSv39 | uint64(pt.Root)
}

// Drop releases every frame this table owns -- the root and every interior
// node it allocated. Leaf-backing frames are owned by Segments, not the
// PageTable, and are released separately.
func (pt *PageTable) Drop() {
	if !pt.owning {
		return
	}
	for _, f := range pt.frames {
		f.Drop()
	}
	pt.frames = nil
}

// tableEntries overlays the 512 PTE slots of a table page.
func tableEntries(ppn mem.PhysPageNum) []PTE {
	b := ppn.Bytes()
	return ptesFromBytes(b)
}

// findPTE walks from the root using vpn's three 9-bit indices. If alloc is
// true, a V=0 interior entry causes a fresh frame to be allocated, zeroed,
// and linked in (and its tracker appended to pt.frames); otherwise the walk
// fails as soon as it meets an invalid interior entry.
func (pt *PageTable) findPTE(vpn mem.VirtPageNum, alloc bool) (*PTE, *kernel.Error) {
	idx := vpn.Indexes()
	ppn := pt.Root
	for level := 0; level < 3; level++ {
		entries := tableEntries(ppn)
		pte := &entries[idx[level]]
		if level == 2 {
			return pte, nil
		}
		if !pte.IsValid() {
			if !alloc {
				return nil, errNotMapped
			}
			if !pt.owning {
				return nil, errOwningViewWrite
			}
			frame, err := pmm.Alloc()
			if err != nil {
				return nil, err
			}
			pt.frames = append(pt.frames, frame)
			*pte = NewPTE(frame.PPN, FlagV)
		}
		ppn = pte.PPN()
	}
	panic("unreachable")
}

// Map installs vpn -> ppn with the given flags, allocating any interior
// table frames that do not yet exist. The final PTE must currently be
// invalid (§3 invariant).
func (pt *PageTable) Map(vpn mem.VirtPageNum, ppn mem.PhysPageNum, flags PTEFlag) *kernel.Error {
	if !pt.owning {
		return errOwningViewWrite
	}
	pte, err := pt.findPTE(vpn, true)
	if err != nil {
		return err
	}
	if pte.IsValid() {
		panic("vmm: map of already-mapped virtual page")
	}
	*pte = NewPTE(ppn, flags|FlagV)
	return nil
}

// Unmap clears the leaf mapping for vpn. The final PTE must currently be
// valid; Unmap panics if vpn is not mapped (§7 invariant), whether the leaf
// or an interior level is missing. Interior table frames are not reclaimed
// here -- they are freed together when the owning PageTable is Dropped.
func (pt *PageTable) Unmap(vpn mem.VirtPageNum) *kernel.Error {
	if !pt.owning {
		return errOwningViewWrite
	}
	pte, err := pt.findPTE(vpn, false)
	if err != nil || !pte.IsValid() {
		panic("vmm: unmap of unmapped virtual page")
	}
	*pte = 0
	return nil
}

// Translate returns the leaf PTE for vpn, if present.
func (pt *PageTable) Translate(vpn mem.VirtPageNum) (PTE, bool) {
	pte, err := pt.findPTE(vpn, false)
	if err != nil || !pte.IsValid() {
		return 0, false
	}
	return *pte, true
}

// TranslateAddr resolves a full virtual address to its physical address,
// preserving the page offset.
func (pt *PageTable) TranslateAddr(va mem.VirtAddr) (mem.PhysAddr, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return mem.PhysAddr(uintptr(pte.PPN().Addr()) | va.PageOffset()), true
}
