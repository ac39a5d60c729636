package scanner

import "testing"

func TestScanChunkScalarAlignmentStepping(t *testing.T) {
	c := &scalarComparator{dt: Int, target: IntValue(0)}
	buf := make([]byte, 16) // four zero ints
	results := scanChunk(c, Exact, buf, 0, 4)
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	for i, r := range results {
		if r.Address != uint64(i*4) {
			t.Errorf("result %d address = %d, want %d", i, r.Address, i*4)
		}
	}
}

func TestScanChunkAnchorByteSkipsNonMatchingBytes(t *testing.T) {
	p := NewStructPattern(0x7F, 0)
	p.AddBasicField(1, Byte, ByteValue(0xAA))
	c := &structComparator{pattern: p}

	buf := []byte{0x00, 0x7F, 0xAA, 0x00, 0x7F, 0x00, 0x00}
	results := scanChunk(c, Exact, buf, 1000, 1)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Address != 1001 {
		t.Errorf("Address = %d, want 1001", results[0].Address)
	}
}
