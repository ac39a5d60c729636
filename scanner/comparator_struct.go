package scanner

import "bytes"

// structComparator implements the keyed-struct family of §4.4. It anchors
// on the pattern's key byte, validates that SizeBeforeKey bytes before it
// and SizeFromKey bytes from it both lie inside the supplied buffer, then
// checks every basic and sequence field relative to the key. All fields
// must match for Exact; any single failure is sufficient for Not. Only
// Exact and Not are valid, and only Exact on first scan.
type structComparator struct {
	pattern *StructPattern
}

func (c *structComparator) SizeBefore() int { return int(c.pattern.SizeBeforeKey) }
func (c *structComparator) SizeAfter() int  { return int(c.pattern.SizeFromKey) }

func (c *structComparator) AnchorByte() (byte, bool) { return c.pattern.SearchKey, true }

// AnchorAddressFor undoes the ValidateInBuffer base-address translation:
// the key byte lives at resultAddress + KeyOffsetFromBase.
func (c *structComparator) AnchorAddressFor(resultAddress uint64) uint64 {
	return uint64(int64(resultAddress) + int64(c.pattern.KeyOffsetFromBase))
}

func (c *structComparator) ValidateFirstScanOp(op ScanOp) error {
	if op != Exact {
		return newErr(BadOp, "first scan of a struct pattern only accepts exact, got %s", op)
	}
	return nil
}

func (c *structComparator) ValidateRescanOp(op ScanOp) error {
	switch op {
	case Exact, Not:
		return nil
	default:
		return newErr(BadOp, "struct comparator only supports exact/not, got %s", op)
	}
}

func (c *structComparator) allFieldsMatch(buf []byte, keyOffset int) bool {
	for _, f := range c.pattern.BasicFields {
		off := keyOffset + int(f.OffsetFromKey)
		size := f.Type.Size()
		if off < 0 || off+size > len(buf) {
			return false
		}
		if !scalarEqual(f.Type, decodeScanValue(f.Type, buf[off:off+size]), f.Value) {
			return false
		}
	}
	for _, f := range c.pattern.SequenceFields {
		off := keyOffset + int(f.OffsetFromKey)
		size := len(f.Bytes)
		if off < 0 || off+size > len(buf) {
			return false
		}
		if !bytes.Equal(buf[off:off+size], f.Bytes) {
			return false
		}
	}
	return true
}

func (c *structComparator) ValidateInBuffer(buf []byte, anchorOffset int, realAddress uint64, op ScanOp, _ *Result) (Result, bool) {
	before := int(c.pattern.SizeBeforeKey)
	after := int(c.pattern.SizeFromKey)
	if anchorOffset-before < 0 || anchorOffset+after > len(buf) {
		return Result{}, false
	}
	if buf[anchorOffset] != c.pattern.SearchKey {
		return Result{}, false
	}

	matched := c.allFieldsMatch(buf, anchorOffset)
	switch op {
	case Exact:
		if !matched {
			return Result{}, false
		}
	case Not:
		if matched {
			return Result{}, false
		}
	default:
		return Result{}, false
	}

	baseAddress := uint64(int64(realAddress) - int64(c.pattern.KeyOffsetFromBase))
	return Result{Address: baseAddress}, true
}
