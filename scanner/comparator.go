package scanner

// Comparator is the type-specialized predicate family of §4.4: one
// implementation per data-type family (scalar, sequence, struct), each
// exposing the same two primitive operations the engines drive — an
// in-buffer check with no faulting reads, and a direct check against live
// memory under the fault guard.
type Comparator interface {
	// SizeBefore/SizeAfter bound the byte window a candidate needs around
	// its anchor: zero bytes before and the type width after for scalars,
	// zero before and the pattern length after for sequences, and
	// SizeBeforeKey/SizeFromKey for structs. SizeBefore()+SizeAfter() is
	// the comparator's "data size" for chunk-overlap purposes (§4.7 step 7).
	SizeBefore() int
	SizeAfter() int

	// AnchorByte returns the byte a chunk scan should memchr for to find
	// candidate anchors, and false if this comparator instead steps by
	// alignment (the scalar family has no natural anchor byte).
	AnchorByte() (byte, bool)

	// ValidateFirstScanOp/ValidateRescanOp reject operators this data
	// family doesn't support, per §3's invariants.
	ValidateFirstScanOp(op ScanOp) error
	ValidateRescanOp(op ScanOp) error

	// ValidateInBuffer checks the candidate anchored at buf[anchorOffset]
	// against op and this comparator's target, given realAddress as the
	// address buf[anchorOffset] corresponds to in the host's address space.
	// prev is the pre-rescan Result when this is a rescan step (nil on
	// first scan). buf must have at least SizeBefore() bytes before
	// anchorOffset and SizeAfter() bytes from it onward; anything less
	// yields (Result{}, false) rather than panicking.
	ValidateInBuffer(buf []byte, anchorOffset int, realAddress uint64, op ScanOp, prev *Result) (Result, bool)

	// AnchorAddressFor maps a Result.Address back to the real address its
	// anchor byte lives at. Identity for scalar and sequence comparators,
	// since their Result.Address already is the anchor address; struct
	// comparators store the pattern's base address instead (realAddress
	// minus KeyOffsetFromBase), so rescan needs this to re-locate the key
	// byte in a freshly read buffer.
	AnchorAddressFor(resultAddress uint64) uint64
}

// dataSize is SizeBefore()+SizeAfter(), the full window size a comparator
// needs around any one candidate.
func dataSize(c Comparator) int { return c.SizeBefore() + c.SizeAfter() }

// validateDirect implements the shared "read live memory under a fault
// guard, then delegate to ValidateInBuffer" shape every comparator's direct
// path uses (§4.8 step 5, singleton batches).
func validateDirect(c Comparator, address uint64, op ScanOp, prev *Result) (Result, bool) {
	before := c.SizeBefore()
	after := c.SizeAfter()
	buf := make([]byte, before+after)
	if !safeCopy(buf, uintptr(address)-uintptr(before)) {
		return Result{}, false
	}
	return c.ValidateInBuffer(buf, before, address, op, prev)
}

// newComparator builds the comparator matching dt, bound to the target
// the caller just set up (scalar target, search sequence, or struct
// pattern — exactly one is used, selected by dt).
func newComparator(dt DataType, target ScanValue, seq *SearchSequence, pattern *StructPattern) (Comparator, error) {
	switch dt {
	case Byte, Int, Float, Double, Bool:
		return &scalarComparator{dt: dt, target: target}, nil
	case String, ByteArray:
		if seq == nil || len(seq.Bytes) == 0 {
			return nil, newErr(SetupMissing, "sequence target is empty")
		}
		if len(seq.Bytes) > MaxSequenceSize {
			return nil, newErr(OversizeTarget, "sequence length %d exceeds MaxSequenceSize %d", len(seq.Bytes), MaxSequenceSize)
		}
		return &sequenceComparator{seq: seq}, nil
	case Struct:
		if pattern == nil {
			return nil, newErr(SetupMissing, "struct pattern is nil")
		}
		if pattern.TotalSize() > MaxStructSize {
			return nil, newErr(OversizeTarget, "struct size %d exceeds MaxStructSize %d", pattern.TotalSize(), MaxStructSize)
		}
		return &structComparator{pattern: pattern}, nil
	default:
		return nil, newErr(InternalInvariant, "unknown data type %d", int(dt))
	}
}
