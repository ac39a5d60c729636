// Package arena implements the scanner's private allocation arena: a
// process-wide bump allocator over privately mapped slabs, whose bases the
// scanner's region walker excludes when it enumerates the host's address
// space. The scanner package does not allocate its own collections (results,
// search sequences, struct-pattern field lists, worker scratch buffers)
// from the arena; those live on the Go heap and are not excluded from a scan.
package arena

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"
)

const defaultReserve = 20 * 1024 * 1024 // 20 MiB, matches the original private heap's initial reserve.

// slab is one mapped backing region and its bump cursor.
type slab struct {
	base uintptr
	data []byte
	used int
}

func (s *slab) contains(addr uintptr) bool {
	return addr >= s.base && addr < s.base+uintptr(len(s.data))
}

func (s *slab) remaining() int { return len(s.data) - s.used }

// Arena is a single-threaded bump allocator over one or more mmap'd slabs.
// Per §5 of the specification, it is accessed only from a scanner's dispatch
// goroutine; worker goroutines allocate from the Go heap directly and never
// touch the arena.
type Arena struct {
	mu           sync.Mutex
	slabs        []*slab
	growSize     int
	degraded     bool // true once any allocation has fallen back to the system allocator
	degradedSize int64
}

// New creates an arena with its initial reserve pre-mapped. If the platform
// mapping fails, the arena starts in degraded mode: every allocation falls
// back to the Go heap and Contains never reports true for it. This mirrors
// the source's accepted behavior when private-heap creation fails (see
// DESIGN.md, Open Question 1) rather than treating it as fatal.
func New() *Arena {
	a := &Arena{growSize: defaultReserve}
	if s, err := newSlab(defaultReserve); err == nil {
		a.slabs = append(a.slabs, s)
	} else {
		slog.Warn("arena: initial reserve mapping failed, degrading to system allocator", "error", err)
		a.degraded = true
	}
	return a
}

// Allocate returns a zeroed byte slice of size bytes, carved out of the
// arena's current slab, growing the arena with a fresh slab if the current
// one cannot satisfy the request. On mapping failure it falls back silently
// to the Go heap.
func (a *Arena) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.slabs) > 0 {
		cur := a.slabs[len(a.slabs)-1]
		if cur.remaining() >= size {
			b := cur.data[cur.used : cur.used+size]
			cur.used += size
			return b
		}
	}

	grow := a.growSize
	if size > grow {
		grow = size
	}
	s, err := newSlab(grow)
	if err != nil {
		a.degraded = true
		a.degradedSize += int64(size)
		slog.Warn("arena: slab mapping failed, falling back to system allocator", "size", size, "error", err)
		return make([]byte, size)
	}
	a.slabs = append(a.slabs, s)
	b := s.data[0:size]
	s.used = size
	return b
}

// Deallocate is bookkeeping only: the arena never reclaims a slab mid-scan,
// since scanner state is rebuilt wholesale on every first_scan and shrunk by
// wholesale replacement on every rescan (§4.2, §4.8). It exists so callers
// have a symmetric release point, matching the source's allocate/deallocate
// pair, without pretending to compact the bump cursor.
func (a *Arena) Deallocate([]byte) {}

// Contains reports whether addr falls inside a slab this arena mapped
// itself. Memory that fell back to the system allocator during a degraded
// allocation is never reported as contained — this is the accepted
// consequence described in DESIGN.md's Open Question 1, not a bug.
func (a *Arena) Contains(addr uintptr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.slabs {
		if s.contains(addr) {
			return true
		}
	}
	return false
}

// Bases returns the starting address of every slab this arena has mapped,
// for callers (the region walker) that need to exclude arena-owned memory
// from a host-address-space enumeration by allocation base rather than by
// a single Contains check per candidate region.
func (a *Arena) Bases() []uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]uintptr, len(a.slabs))
	for i, s := range a.slabs {
		out[i] = s.base
	}
	return out
}

// Degraded reports whether any allocation has fallen back to the system
// allocator, and the cumulative byte count of such allocations.
func (a *Arena) Degraded() (bool, int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded, a.degradedSize
}

// addrOf returns the starting address of a byte slice, for comparison
// against slab bounds. Only meaningful for slices this package itself
// carved out of a slab; callers must not rely on it for Go-heap slices.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// Close unmaps every slab this arena owns. Call once, at module unload.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for _, s := range a.slabs {
		if err := unmapSlab(s); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("arena: unmap slab at %#x: %w", s.base, err)
		}
	}
	a.slabs = nil
	return firstErr
}
