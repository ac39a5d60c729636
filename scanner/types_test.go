package scanner

import "testing"

func TestDataTypeSize(t *testing.T) {
	cases := map[DataType]int{Byte: 1, Bool: 1, Int: 4, Float: 4, Double: 8}
	for dt, want := range cases {
		if got := dt.Size(); got != want {
			t.Errorf("%s.Size() = %d, want %d", dt, got, want)
		}
	}
}

func TestDataTypeIsScalar(t *testing.T) {
	for _, dt := range []DataType{Byte, Int, Float, Double, Bool} {
		if !dt.IsScalar() {
			t.Errorf("%s should be scalar", dt)
		}
	}
	for _, dt := range []DataType{String, ByteArray, Struct} {
		if dt.IsScalar() {
			t.Errorf("%s should not be scalar", dt)
		}
	}
}

func TestScanOpRequiresPriorScan(t *testing.T) {
	for _, op := range []ScanOp{Increased, Decreased, Changed, Unchanged} {
		if !op.RequiresPriorScan() {
			t.Errorf("%s should require a prior scan", op)
		}
	}
	for _, op := range []ScanOp{Exact, Not} {
		if op.RequiresPriorScan() {
			t.Errorf("%s should not require a prior scan", op)
		}
	}
}

func TestStructPatternGrowsBothDirections(t *testing.T) {
	p := NewStructPattern(0x7F, 4)
	if p.TotalSize() != 1 {
		t.Fatalf("fresh pattern total size = %d, want 1", p.TotalSize())
	}
	p.AddBasicField(-4, Int, IntValue(100))
	p.AddSequenceField(8, []byte{0xAA, 0xBB})
	if p.SizeBeforeKey != 4 {
		t.Errorf("SizeBeforeKey = %d, want 4", p.SizeBeforeKey)
	}
	if p.SizeFromKey != 10 {
		t.Errorf("SizeFromKey = %d, want 10", p.SizeFromKey)
	}
	if p.TotalSize() != 14 {
		t.Errorf("TotalSize() = %d, want 14", p.TotalSize())
	}
}

func TestScanValueRoundTrip(t *testing.T) {
	if v := IntValue(42); v.AsInt() != 42 {
		t.Errorf("AsInt() = %d, want 42", v.AsInt())
	}
	if v := DoubleValue(3.5); v.AsDouble() != 3.5 {
		t.Errorf("AsDouble() = %v, want 3.5", v.AsDouble())
	}
	if v := BoolValue(true); !v.AsBool() {
		t.Errorf("AsBool() = false, want true")
	}
}

func TestDecodeScanValueLittleEndian(t *testing.T) {
	buf := []byte{0x2A, 0x00, 0x00, 0x00}
	v := decodeScanValue(Int, buf)
	if v.AsInt() != 42 {
		t.Errorf("decodeScanValue(Int, ...) = %d, want 42", v.AsInt())
	}
}
