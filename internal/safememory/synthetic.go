package safememory

import (
	"context"
	"sort"
)

// Synthetic is a Prober backed by a fixed, caller-supplied address map. It
// never touches the real process and never errors transiently; it exists so
// tests can seed a controlled region layout instead of depending on the
// host OS's actual memory map, per SPEC_FULL.md §9's design note on
// abstracting the probe behind a mockable interface.
type Synthetic struct {
	regions []Region
}

// NewSynthetic builds a Synthetic prober over the given regions. Regions do
// not need to be sorted or non-overlapping; EnumerateReadableRegions returns
// them sorted by base address for deterministic test assertions.
func NewSynthetic(regions ...Region) *Synthetic {
	cp := make([]Region, len(regions))
	copy(cp, regions)
	return &Synthetic{regions: cp}
}

func (s *Synthetic) find(addr uintptr) (Region, bool) {
	for _, r := range s.regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

func (s *Synthetic) IsReadable(_ context.Context, addr uintptr, size uintptr) (bool, error) {
	r, ok := s.find(addr)
	if !ok {
		return false, nil
	}
	return addr+size <= r.End(), nil
}

func (s *Synthetic) IsWritable(ctx context.Context, addr uintptr, size uintptr) (bool, error) {
	// The synthetic fixture treats every region it knows about as writable;
	// tests that need to distinguish read-only pages construct a region set
	// that simply omits them.
	return s.IsReadable(ctx, addr, size)
}

func (s *Synthetic) AccessiblePrefix(_ context.Context, addr uintptr, requested uintptr) (uintptr, error) {
	r, ok := s.find(addr)
	if !ok {
		return 0, nil
	}
	avail := r.End() - addr
	if avail > requested {
		avail = requested
	}
	return avail, nil
}

func (s *Synthetic) EnumerateReadableRegions(_ context.Context, excludeBase uintptr) ([]Region, error) {
	out := make([]Region, 0, len(s.regions))
	for _, r := range s.regions {
		if r.Base == excludeBase {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out, nil
}
