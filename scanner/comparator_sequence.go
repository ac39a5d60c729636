package scanner

import "bytes"

// sequenceComparator implements the String/ByteArray family of §4.4: a
// plain memcmp against a fixed byte pattern. Only Exact and Not are valid;
// first scan accepts only Exact. Results carry no Value — only the
// address, per §3.
type sequenceComparator struct {
	seq *SearchSequence
}

func (c *sequenceComparator) SizeBefore() int { return 0 }
func (c *sequenceComparator) SizeAfter() int  { return len(c.seq.Bytes) }

func (c *sequenceComparator) AnchorByte() (byte, bool) {
	if len(c.seq.Bytes) == 0 {
		return 0, false
	}
	return c.seq.Bytes[0], true
}

func (c *sequenceComparator) AnchorAddressFor(resultAddress uint64) uint64 { return resultAddress }

func (c *sequenceComparator) ValidateFirstScanOp(op ScanOp) error {
	if op != Exact {
		return newErr(BadOp, "first scan of a sequence type only accepts exact, got %s", op)
	}
	return nil
}

func (c *sequenceComparator) ValidateRescanOp(op ScanOp) error {
	switch op {
	case Exact, Not:
		return nil
	default:
		return newErr(BadOp, "sequence comparator only supports exact/not, got %s", op)
	}
}

func (c *sequenceComparator) ValidateInBuffer(buf []byte, anchorOffset int, realAddress uint64, op ScanOp, _ *Result) (Result, bool) {
	n := len(c.seq.Bytes)
	if anchorOffset < 0 || anchorOffset+n > len(buf) {
		return Result{}, false
	}
	matches := bytes.Equal(buf[anchorOffset:anchorOffset+n], c.seq.Bytes)
	switch op {
	case Exact:
		if !matches {
			return Result{}, false
		}
		return Result{Address: realAddress}, true
	case Not:
		if matches {
			return Result{}, false
		}
		return Result{Address: realAddress}, true
	default:
		return Result{}, false
	}
}
