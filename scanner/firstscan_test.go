package scanner

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/coldtrace/memscan/internal/safememory"
)

func addrOfTestBuf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

// TestFirstScanEngineFindsScalarExact reproduces scenario 1 over a real,
// GC-pinned backing array so the fault-guarded chunk copy reads live
// memory this process actually owns.
func TestFirstScanEngineFindsScalarExact(t *testing.T) {
	buf := make([]byte, 8)
	buf[3] = 0x2A
	base := addrOfTestBuf(buf)

	c := &scalarComparator{dt: Byte, target: ByteValue(0x2A)}
	engine := &firstScanEngine{comparator: c, op: Exact, alignment: 1, maxResults: 100}

	regions := []safememory.Region{{Base: base, Size: uintptr(len(buf))}}
	outcome := engine.run(regions)
	runtime.KeepAlive(buf)

	if len(outcome.results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(outcome.results), outcome.results)
	}
	if outcome.results[0].Address != uint64(base)+3 {
		t.Errorf("Address = %d, want %d", outcome.results[0].Address, uint64(base)+3)
	}
}

func TestFirstScanEngineRespectsMaxResults(t *testing.T) {
	const n = 64
	buf := make([]byte, n)
	base := addrOfTestBuf(buf)

	c := &scalarComparator{dt: Byte, target: ByteValue(0)}
	engine := &firstScanEngine{comparator: c, op: Exact, alignment: 1, maxResults: 10}

	regions := []safememory.Region{{Base: base, Size: uintptr(n)}}
	outcome := engine.run(regions)
	runtime.KeepAlive(buf)

	if len(outcome.results) != 10 {
		t.Fatalf("got %d results, want 10 (capped)", len(outcome.results))
	}
	if !outcome.maxResultsReached {
		t.Error("expected maxResultsReached to be set")
	}
}

// TestFirstScanEngineFindsStructPattern reproduces scenario 4 (key 0x7F at
// offset 4 from base, an Int field at offset -4 from the key, a ByteArray
// field at offset +4 from the key) through the same worker-pool engine
// TestFirstScanEngineFindsScalarExact exercises for scalars, over a real
// heap buffer.
func TestFirstScanEngineFindsStructPattern(t *testing.T) {
	buf := []byte{100, 0, 0, 0, 0x7F, 0, 0, 0, 0xAA, 0xBB}
	base := addrOfTestBuf(buf)

	p := NewStructPattern(0x7F, 4)
	p.AddBasicField(-4, Int, IntValue(100))
	p.AddSequenceField(4, []byte{0xAA, 0xBB})
	c := &structComparator{pattern: p}

	engine := &firstScanEngine{comparator: c, op: Exact, alignment: 1, maxResults: 100}
	regions := []safememory.Region{{Base: base, Size: uintptr(len(buf))}}
	outcome := engine.run(regions)
	runtime.KeepAlive(buf)

	if len(outcome.results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(outcome.results), outcome.results)
	}
	if outcome.results[0].Address != uint64(base) {
		t.Errorf("Address = %d, want %d (struct base)", outcome.results[0].Address, uint64(base))
	}
}

func TestFirstScanEngineZeroLengthRegionYieldsNothing(t *testing.T) {
	buf := make([]byte, 1)
	base := addrOfTestBuf(buf)
	c := &scalarComparator{dt: Byte, target: ByteValue(0)}
	engine := &firstScanEngine{comparator: c, op: Exact, alignment: 1, maxResults: 10}

	regions := []safememory.Region{{Base: base, Size: 0}}
	outcome := engine.run(regions)
	runtime.KeepAlive(buf)
	if len(outcome.results) != 0 {
		t.Errorf("zero-length region should yield no results, got %+v", outcome.results)
	}
}
