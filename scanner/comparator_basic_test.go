package scanner

import (
	"math"
	"testing"
)

func TestScalarEqualEpsilonAndNaN(t *testing.T) {
	if !scalarEqual(Float, FloatValue(0.0), FloatValue(-0.0)) {
		t.Error("0.0 should equal -0.0 for Float")
	}
	nan := FloatValue(float32(math.NaN()))
	if scalarEqual(Float, nan, nan) {
		t.Error("NaN should never equal itself")
	}
	if !scalarEqual(Double, DoubleValue(1.0), DoubleValue(1.0+1e-9)) {
		t.Error("values within doubleEpsilon should be equal")
	}
	if scalarEqual(Double, DoubleValue(1.0), DoubleValue(1.1)) {
		t.Error("values outside doubleEpsilon should not be equal")
	}
}

func TestScalarGreaterBoolOrdering(t *testing.T) {
	if !scalarGreater(Bool, BoolValue(true), BoolValue(false)) {
		t.Error("true should be greater than false")
	}
	if scalarGreater(Bool, BoolValue(false), BoolValue(true)) {
		t.Error("false should not be greater than true")
	}
}

// TestScalarExact reproduces scenario 1 of the testable properties: a
// little-endian int32 0x2A at offset 3 of an 8-byte fixture.
func TestScalarExact(t *testing.T) {
	c := &scalarComparator{dt: Int, target: IntValue(42)}
	buf := []byte{0x11, 0x22, 0x33, 0x2A, 0x00, 0x00, 0x00, 0x00}

	r, ok := c.ValidateInBuffer(buf, 3, 1003, Exact, nil)
	if !ok {
		t.Fatal("expected a match at offset 3")
	}
	if r.Address != 1003 || r.Value.AsInt() != 42 {
		t.Errorf("got %+v", r)
	}

	if _, ok := c.ValidateInBuffer(buf, 0, 1000, Exact, nil); ok {
		t.Error("offset 0 should not match target 42")
	}
}

func TestScalarIncreasedRequiresPrev(t *testing.T) {
	c := &scalarComparator{dt: Int, target: IntValue(0)}
	buf := make([]byte, 4)
	putLE32(buf, uint32(int32(11)))

	if _, ok := c.ValidateInBuffer(buf, 0, 2000, Increased, nil); ok {
		t.Error("Increased with no prior value should not match")
	}

	prev := Result{Address: 2000, Value: IntValue(10)}
	r, ok := c.ValidateInBuffer(buf, 0, 2000, Increased, &prev)
	if !ok {
		t.Fatal("expected Increased to match 10 -> 11")
	}
	if !r.HasOld || r.OldValue.AsInt() != 10 || r.Value.AsInt() != 11 {
		t.Errorf("got %+v", r)
	}
}

func TestScalarFirstScanRejectsPriorOps(t *testing.T) {
	c := &scalarComparator{dt: Int, target: IntValue(0)}
	if err := c.ValidateFirstScanOp(Increased); err == nil {
		t.Error("first scan should reject Increased")
	}
	if err := c.ValidateFirstScanOp(Exact); err != nil {
		t.Errorf("first scan should accept Exact, got %v", err)
	}
}
