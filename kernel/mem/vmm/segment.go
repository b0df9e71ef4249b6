package vmm

import (
	"sv39kernel/kernel"
	"sv39kernel/kernel/mem"
	"sv39kernel/kernel/mem/pmm"
)

// MapType selects how a Segment's virtual pages are backed by physical
// frames.
type MapType int

const (
	// Identical maps a VPN to the PPN of equal numeric value. Used only
	// for kernel regions, which the kernel can therefore dereference
	// without any translation bookkeeping.
	Identical MapType = iota
	// Framed maps each VPN to an independently allocated, owned frame.
	Framed
)

var errSegmentRange = &kernel.Error{Module: "vmm", Message: "segment VPN outside declared range"}

// Segment is a contiguous VPN range mapped with uniform permissions and a
// uniform backing strategy.
type Segment struct {
	Range mem.VirtPageRange
	Type  MapType
	Perm  PTEFlag

	// frames backs Framed segments; it is nil for Identical segments.
	frames map[mem.VirtPageNum]*pmm.FrameTracker
}

// NewIdenticalSegment describes an identity-mapped kernel region covering
// [start, end).
func NewIdenticalSegment(start, end mem.VirtAddr, perm PTEFlag) *Segment {
	return &Segment{
		Range: mem.VirtPageRange{Start: start.Floor(), End: end.Ceil()},
		Type:  Identical,
		Perm:  perm,
	}
}

// NewFramedSegment describes a per-page-allocated region covering
// [start, end).
func NewFramedSegment(start, end mem.VirtAddr, perm PTEFlag) *Segment {
	return &Segment{
		Range:  mem.VirtPageRange{Start: start.Floor(), End: end.Ceil()},
		Type:   Framed,
		Perm:   perm,
		frames: make(map[mem.VirtPageNum]*pmm.FrameTracker),
	}
}

// mapPage installs the mapping for a single VPN within the segment's range.
func (s *Segment) mapPage(pt *PageTable, vpn mem.VirtPageNum) *kernel.Error {
	if !s.Range.Contains(vpn) {
		return errSegmentRange
	}
	switch s.Type {
	case Identical:
		return pt.Map(vpn, mem.PhysPageNum(vpn), s.Perm)
	default: // Framed
		frame, err := pmm.Alloc()
		if err != nil {
			return err
		}
		if err := pt.Map(vpn, frame.PPN, s.Perm); err != nil {
			frame.Drop()
			return err
		}
		s.frames[vpn] = frame
		return nil
	}
}

// MapAll installs every page in the segment's range.
func (s *Segment) MapAll(pt *PageTable) *kernel.Error {
	for vpn := s.Range.Start; vpn < s.Range.End; vpn++ {
		if err := s.mapPage(pt, vpn); err != nil {
			return err
		}
	}
	return nil
}

// UnmapAll removes every page in the segment's range and, for a Framed
// segment, drops the backing frames.
func (s *Segment) UnmapAll(pt *PageTable) *kernel.Error {
	for vpn := s.Range.Start; vpn < s.Range.End; vpn++ {
		if err := pt.Unmap(vpn); err != nil {
			return err
		}
		if s.Type == Framed {
			if frame, ok := s.frames[vpn]; ok {
				frame.Drop()
				delete(s.frames, vpn)
			}
		}
	}
	return nil
}

// FramePage returns the backing frame for vpn within a Framed segment, if
// any.
func (s *Segment) FramePage(vpn mem.VirtPageNum) (*pmm.FrameTracker, bool) {
	f, ok := s.frames[vpn]
	return f, ok
}
