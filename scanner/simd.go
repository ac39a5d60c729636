package scanner

import "golang.org/x/sys/cpu"

// simdEligible gates the 256-bit fast path of §4.5: it only applies to
// scalar Exact/Not when the CPU advertises AVX2, and only when alignment
// equals the type's width — the lane layout below places lane i at byte
// offset i*size within a 32-byte window, which is only a valid enumeration
// of "every alignment-stepped candidate" when alignment matches the lane
// stride. A coarser or finer alignment falls back to the scalar stepping
// path, which remains correct in all cases; the fast path is strictly an
// acceleration; see SPEC_FULL.md §4.5's Go extension note on why the lane
// math below is expressed in portable Go rather than assembly.
func simdEligible(dt DataType, op ScanOp, alignment int) bool {
	if !cpu.X86.HasAVX2 {
		return false
	}
	if op != Exact && op != Not {
		return false
	}
	if !dt.IsScalar() {
		return false
	}
	return alignment == dt.Size()
}

// laneBitsMask is the full set of mask bits a 32-byte window populates for
// a given lane width, per §4.5 step 4: 32 one-bit lanes for 1-byte types,
// 8 four-bit lanes for 4-byte types, 4 one-bit lanes for 8-byte types.
func laneBitsMask(size int) uint32 {
	switch size {
	case 1, 4:
		return 0xFFFFFFFF
	case 8:
		return 0x0000000F
	default:
		return 0
	}
}

// simdCompareMask builds the equality bitmask for one 32-byte window,
// reusing scalarEqual so the fast path can never disagree with the scalar
// path on what counts as a match (including epsilon and NaN handling).
func simdCompareMask(dt DataType, target ScanValue, window []byte) uint32 {
	size := dt.Size()
	lanes := 32 / size
	var mask uint32
	for lane := 0; lane < lanes; lane++ {
		off := lane * size
		val := decodeScanValue(dt, window[off:off+size])
		if !scalarEqual(dt, val, target) {
			continue
		}
		switch size {
		case 1:
			mask |= 1 << uint(lane)
		case 4:
			mask |= 0xF << uint(lane*4)
		case 8:
			mask |= 1 << uint(lane)
		}
	}
	return mask
}

// invertMask implements step 3 of §4.5 for the Not operator.
func invertMask(size int, mask uint32) uint32 {
	return ^mask & laneBitsMask(size)
}

// laneMatched reports whether lane is a full match under mask, per the
// per-lane-width interpretation of §4.5 step 4.
func laneMatched(size int, mask uint32, lane int) bool {
	switch size {
	case 1, 8:
		return mask&(1<<uint(lane)) != 0
	case 4:
		shift := uint(lane * 4)
		return (mask>>shift)&0xF == 0xF
	default:
		return false
	}
}

// scanWindowSIMD evaluates one 32-byte window and emits a Result for every
// matching, alignment-valid lane. baseAddress is the address of window[0].
func scanWindowSIMD(dt DataType, target ScanValue, op ScanOp, window []byte, baseAddress uint64, emit func(Result)) {
	size := dt.Size()
	mask := simdCompareMask(dt, target, window)
	if op == Not {
		mask = invertMask(size, mask)
	}
	lanes := 32 / size
	for lane := 0; lane < lanes; lane++ {
		if !laneMatched(size, mask, lane) {
			continue
		}
		off := lane * size
		val := decodeScanValue(dt, window[off:off+size])
		emit(Result{Address: baseAddress + uint64(off), Value: val})
	}
}
