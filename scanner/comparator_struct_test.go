package scanner

import "testing"

// TestStructMatch reproduces scenario 4 of the testable properties: key
// 0x7F at offset 4 from base, an Int field at offset -4 from the key
// (value 100, at base+0) and a ByteArray field at offset +4 from the key
// ([0xAA, 0xBB], at base+8).
func TestStructMatch(t *testing.T) {
	p := NewStructPattern(0x7F, 4)
	p.AddBasicField(-4, Int, IntValue(100))
	p.AddSequenceField(4, []byte{0xAA, 0xBB})

	c := &structComparator{pattern: p}
	buf := []byte{100, 0, 0, 0, 0x7F, 0, 0, 0, 0xAA, 0xBB}

	// The key byte sits at offset 4 in buf, which is also its real address
	// relative to a base of 0 for this fixture.
	r, ok := c.ValidateInBuffer(buf, 4, 4, Exact, nil)
	if !ok {
		t.Fatal("expected struct pattern to match")
	}
	if r.Address != 0 {
		t.Errorf("Address = %d, want 0 (struct base)", r.Address)
	}
}

func TestStructMatchRejectsWrongKeyByte(t *testing.T) {
	p := NewStructPattern(0x7F, 0)
	c := &structComparator{pattern: p}
	buf := []byte{0x00}
	if _, ok := c.ValidateInBuffer(buf, 0, 0, Exact, nil); ok {
		t.Error("a non-matching key byte must never match")
	}
}

func TestStructAnchorAddressForUndoesBaseTranslation(t *testing.T) {
	p := NewStructPattern(0x7F, 4)
	c := &structComparator{pattern: p}
	if got := c.AnchorAddressFor(1000); got != 1004 {
		t.Errorf("AnchorAddressFor(1000) = %d, want 1004", got)
	}
}

func TestNewStructPatternRejectsOversizeTotal(t *testing.T) {
	p := NewStructPattern(0x7F, 0)
	p.AddBasicField(int32(MaxStructSize), Int, IntValue(0))
	_, err := newComparator(Struct, ScanValue{}, nil, p)
	if err == nil {
		t.Fatal("expected OversizeTarget error")
	}
	if se, ok := err.(ScanError); !ok || se.Kind != OversizeTarget {
		t.Errorf("got %v, want OversizeTarget", err)
	}
}
