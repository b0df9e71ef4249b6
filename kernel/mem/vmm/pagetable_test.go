package vmm

import (
	"testing"

	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/pmm"
)

func withAllocator(t *testing.T, pages int) {
	t.Helper()
	if err := pmm.Init(0, mem.PhysPageNum(pages)); err != nil {
		t.Fatalf("pmm.Init: %v", err)
	}
}

func TestMapUnmapTranslate(t *testing.T) {
	withAllocator(t, 4096)

	pt, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vpn := mem.VirtPageNum(0x10)
	ppn := mem.PhysPageNum(0x20)
	if err := pt.Map(vpn, ppn, FlagR|FlagW); err != nil {
		t.Fatalf("Map: %v", err)
	}

	pte, ok := pt.Translate(vpn)
	if !ok {
		t.Fatal("expected translate to find the mapping")
	}
	if pte.PPN() != ppn {
		t.Fatalf("expected ppn %v; got %v", ppn, pte.PPN())
	}
	if !pte.HasFlags(FlagV | FlagR | FlagW) {
		t.Fatalf("expected V|R|W flags; got %v", pte.Flags())
	}

	if err := pt.Unmap(vpn); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if _, ok := pt.Translate(vpn); ok {
		t.Fatal("expected translate to fail after unmap")
	}
}

func TestMapAlreadyMappedPanics(t *testing.T) {
	withAllocator(t, 4096)
	pt, _ := New()
	vpn := mem.VirtPageNum(1)
	if err := pt.Map(vpn, 1, FlagR); err != nil {
		t.Fatalf("Map: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Map of same VPN to panic")
		}
	}()
	pt.Map(vpn, 2, FlagR)
}

func TestUnmapUnmappedPanics(t *testing.T) {
	withAllocator(t, 4096)
	pt, _ := New()

	defer func() {
		if recover() == nil {
			t.Fatal("expected Unmap of unmapped VPN to panic")
		}
	}()
	pt.Unmap(mem.VirtPageNum(5))
}

func TestFromTokenIsNonOwning(t *testing.T) {
	withAllocator(t, 4096)
	pt, _ := New()
	view := FromToken(pt.Token())

	if err := view.Map(1, 1, FlagR); err == nil {
		t.Fatal("expected Map on a non-owning view to fail")
	}
}

func TestTokenEncodesSv39Mode(t *testing.T) {
	withAllocator(t, 4096)
	pt, _ := New()
	tok := pt.Token()
	if tok>>60 != 8 {
		t.Fatalf("expected mode field 8 (sv39); got %d", tok>>60)
	}
	if mem.PhysPageNum(tok&((1<<44)-1)) != pt.Root {
		t.Fatal("expected low 44 bits to be the root PPN")
	}
}
