package scanner

import "bytes"

// scanChunk runs comparator c over one in-memory chunk and returns every
// match found, with addresses computed relative to baseAddress (the
// address of buf[0]). It dispatches to the SIMD fast path for eligible
// scalar comparisons, anchor-byte memchr-then-verify for sequence/struct
// comparators, and plain alignment stepping otherwise — exactly the three
// cases §4.7 step 6 describes.
func scanChunk(c Comparator, op ScanOp, buf []byte, baseAddress uint64, alignment int) []Result {
	var out []Result

	if sc, ok := c.(*scalarComparator); ok && simdEligible(sc.dt, op, alignment) {
		size := sc.dt.Size()
		i := 0
		for ; i+32 <= len(buf); i += 32 {
			scanWindowSIMD(sc.dt, sc.target, op, buf[i:i+32], baseAddress+uint64(i), func(r Result) {
				out = append(out, r)
			})
		}
		for ; i+size <= len(buf); i += alignment {
			if r, ok := c.ValidateInBuffer(buf, i, baseAddress+uint64(i), op, nil); ok {
				out = append(out, r)
			}
		}
		return out
	}

	if anchor, ok := c.AnchorByte(); ok {
		searchFrom := 0
		for searchFrom < len(buf) {
			idx := bytes.IndexByte(buf[searchFrom:], anchor)
			if idx < 0 {
				break
			}
			pos := searchFrom + idx
			if r, matched := c.ValidateInBuffer(buf, pos, baseAddress+uint64(pos), op, nil); matched {
				out = append(out, r)
			}
			searchFrom = pos + 1
		}
		return out
	}

	size := dataSize(c)
	for i := 0; i+size <= len(buf); i += alignment {
		if r, ok := c.ValidateInBuffer(buf, i, baseAddress+uint64(i), op, nil); ok {
			out = append(out, r)
		}
	}
	return out
}
