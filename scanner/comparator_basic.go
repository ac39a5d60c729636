package scanner

import "math"

// scalarComparator implements the Byte/Int/Float/Double/Bool family of
// §4.4. Exact/Not compare the freshly read value against the configured
// target; Increased/Decreased/Changed/Unchanged compare against the
// previous scan's value instead, which is why they require prev != nil.
type scalarComparator struct {
	dt     DataType
	target ScanValue
}

func (c *scalarComparator) SizeBefore() int { return 0 }
func (c *scalarComparator) SizeAfter() int  { return c.dt.Size() }

func (c *scalarComparator) AnchorByte() (byte, bool) { return 0, false }

func (c *scalarComparator) AnchorAddressFor(resultAddress uint64) uint64 { return resultAddress }

func (c *scalarComparator) ValidateFirstScanOp(op ScanOp) error {
	switch op {
	case Exact, Not:
		return nil
	default:
		return newErr(BadOp, "first scan of a scalar type only accepts exact or not, got %s", op)
	}
}

func (c *scalarComparator) ValidateRescanOp(op ScanOp) error {
	switch op {
	case Exact, Not, Increased, Decreased, Changed, Unchanged:
		return nil
	default:
		return newErr(BadOp, "unsupported scalar op %s", op)
	}
}

func (c *scalarComparator) ValidateInBuffer(buf []byte, anchorOffset int, realAddress uint64, op ScanOp, prev *Result) (Result, bool) {
	size := c.dt.Size()
	if anchorOffset < 0 || anchorOffset+size > len(buf) {
		return Result{}, false
	}
	fresh := decodeScanValue(c.dt, buf[anchorOffset:anchorOffset+size])

	switch op {
	case Exact:
		if !scalarEqual(c.dt, fresh, c.target) {
			return Result{}, false
		}
		return Result{Address: realAddress, Value: fresh}, true
	case Not:
		if scalarEqual(c.dt, fresh, c.target) {
			return Result{}, false
		}
		return Result{Address: realAddress, Value: fresh}, true
	case Increased:
		if prev == nil || !scalarGreater(c.dt, fresh, prev.Value) {
			return Result{}, false
		}
		return Result{Address: realAddress, Value: fresh, OldValue: prev.Value, HasOld: true}, true
	case Decreased:
		if prev == nil || !scalarLess(c.dt, fresh, prev.Value) {
			return Result{}, false
		}
		return Result{Address: realAddress, Value: fresh, OldValue: prev.Value, HasOld: true}, true
	case Changed:
		if prev == nil || scalarEqual(c.dt, fresh, prev.Value) {
			return Result{}, false
		}
		return Result{Address: realAddress, Value: fresh, OldValue: prev.Value, HasOld: true}, true
	case Unchanged:
		if prev == nil || !scalarEqual(c.dt, fresh, prev.Value) {
			return Result{}, false
		}
		return Result{Address: realAddress, Value: fresh, OldValue: prev.Value, HasOld: true}, true
	default:
		return Result{}, false
	}
}

// scalarEqual is the one equality primitive Exact/Not/Changed/Unchanged all
// reuse (§4.4), epsilon-aware for floating types and matching IEEE
// semantics for NaN (NaN never equals itself, including itself as -0.0 vs
// 0.0's special case: 0.0 == -0.0 still holds since abs(0 - -0) is 0).
func scalarEqual(dt DataType, a, b ScanValue) bool {
	switch dt {
	case Byte:
		return a.AsByte() == b.AsByte()
	case Int:
		return a.AsInt() == b.AsInt()
	case Bool:
		return a.AsBool() == b.AsBool()
	case Float:
		af, bf := a.AsFloat(), b.AsFloat()
		if math.IsNaN(float64(af)) || math.IsNaN(float64(bf)) {
			return false
		}
		return math.Abs(float64(af)-float64(bf)) <= floatEpsilon
	case Double:
		ad, bd := a.AsDouble(), b.AsDouble()
		if math.IsNaN(ad) || math.IsNaN(bd) {
			return false
		}
		return math.Abs(ad-bd) <= doubleEpsilon
	default:
		return false
	}
}

// scalarGreater/scalarLess apply the same epsilon on the ordering side: a
// value must clear the old value by more than noise-band width to count as
// increased or decreased.
func scalarGreater(dt DataType, a, b ScanValue) bool {
	switch dt {
	case Byte:
		return a.AsByte() > b.AsByte()
	case Int:
		return a.AsInt() > b.AsInt()
	case Bool:
		return a.AsBool() && !b.AsBool()
	case Float:
		af, bf := a.AsFloat(), b.AsFloat()
		if math.IsNaN(float64(af)) || math.IsNaN(float64(bf)) {
			return false
		}
		return float64(af) > float64(bf)+floatEpsilon
	case Double:
		ad, bd := a.AsDouble(), b.AsDouble()
		if math.IsNaN(ad) || math.IsNaN(bd) {
			return false
		}
		return ad > bd+doubleEpsilon
	default:
		return false
	}
}

func scalarLess(dt DataType, a, b ScanValue) bool {
	switch dt {
	case Byte:
		return a.AsByte() < b.AsByte()
	case Int:
		return a.AsInt() < b.AsInt()
	case Bool:
		return !a.AsBool() && b.AsBool()
	case Float:
		af, bf := a.AsFloat(), b.AsFloat()
		if math.IsNaN(float64(af)) || math.IsNaN(float64(bf)) {
			return false
		}
		return float64(af) < float64(bf)-floatEpsilon
	case Double:
		ad, bd := a.AsDouble(), b.AsDouble()
		if math.IsNaN(ad) || math.IsNaN(bd) {
			return false
		}
		return ad < bd-doubleEpsilon
	default:
		return false
	}
}
