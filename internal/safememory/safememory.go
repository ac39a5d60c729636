// Package safememory classifies ranges of the host's own virtual address
// space as safely readable or writable, and enumerates the readable regions
// a scan should walk. It answers one question — "is this page safe to touch
// right now" — knowing the answer can be stale the instant after it is
// given; every live read the scanner performs is still wrapped in its own
// fault guard (see scanner package), so this package is advisory, not a
// substitute for that guard.
package safememory

import "context"

// Region is a contiguous run of virtual address space with uniform
// protection, as reported by the host OS.
type Region struct {
	Base uintptr
	Size uintptr
}

func (r Region) End() uintptr { return r.Base + r.Size }

func (r Region) Contains(addr uintptr) bool {
	return addr >= r.Base && addr < r.End()
}

// Prober queries the host OS for page protection and enumerates readable
// regions. Two concrete implementations exist, one per OS (linux.go,
// windows.go), plus Unsupported (unsupported.go) for every other platform;
// tests use Synthetic, which feeds a fixed address map
// instead of querying the real process, per the design note in SPEC_FULL.md §9.
type Prober interface {
	// IsReadable reports whether the page containing addr is committed, not
	// guarded, not no-access, and readable, and whether size bytes starting
	// at addr fit entirely inside that page's containing region.
	IsReadable(ctx context.Context, addr uintptr, size uintptr) (bool, error)

	// IsWritable is the IsReadable check with the writable permission bit
	// required instead of (in addition to) readable.
	IsWritable(ctx context.Context, addr uintptr, size uintptr) (bool, error)

	// AccessiblePrefix returns the number of bytes from addr to the end of
	// its containing region, capped by requested; 0 if addr itself is
	// inaccessible.
	AccessiblePrefix(ctx context.Context, addr uintptr, requested uintptr) (uintptr, error)

	// EnumerateReadableRegions walks the process's address space and returns
	// every committed, non-guarded, readable region. Regions whose
	// allocation base equals excludeBase are omitted — that is the scanner
	// arena's base, kept out of the host's own scan range (§4.1).
	EnumerateReadableRegions(ctx context.Context, excludeBase uintptr) ([]Region, error)
}
