package scanner

import (
	"context"
	"sort"
	"time"

	"github.com/coldtrace/memscan/internal/safememory"
)

// rescanEngine implements §4.8: re-reading an existing result set in
// region-batched chunks rather than walking the address space again.
type rescanEngine struct {
	comparator Comparator
	op         ScanOp
}

type rescanOutcome struct {
	results             []Result
	invalidAddressCount int64
	elapsed             time.Duration
}

// run re-validates prior against live memory, sorted ascending by address,
// batching consecutive candidates that share a region and fit within
// CHUNK_THRESHOLD into one fault-guarded read.
func (e *rescanEngine) run(ctx context.Context, prior []Result, regions []safememory.Region) rescanOutcome {
	start := time.Now()

	sorted := make([]Result, len(prior))
	copy(sorted, prior)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Address < sorted[j].Address })

	regionsByBase := make([]safememory.Region, len(regions))
	copy(regionsByBase, regions)
	sort.Slice(regionsByBase, func(i, j int) bool { return regionsByBase[i].Base < regionsByBase[j].Base })

	out := make([]Result, 0, len(sorted))
	var invalid int64
	size := dataSize(e.comparator)

	idx := 0
	for idx < len(sorted) {
		prev := sorted[idx]
		anchorAddr := e.comparator.AnchorAddressFor(prev.Address)
		region, ok := findContainingRegion(regionsByBase, uintptr(anchorAddr))
		if !ok {
			invalid++
			idx++
			continue
		}

		j := idx + 1
		for j < len(sorted) {
			nextAnchor := e.comparator.AnchorAddressFor(sorted[j].Address)
			if !region.Contains(uintptr(nextAnchor)) {
				break
			}
			span := (nextAnchor + uint64(size)) - anchorAddr
			if span > uint64(ChunkThreshold) {
				break
			}
			j++
		}

		batch := sorted[idx:j]
		if len(batch) > 1 {
			out = appendBatchResults(out, e.comparator, e.op, batch, anchorAddr, region, &invalid)
		} else {
			single := batch[0]
			if r, ok := validateDirect(e.comparator, e.comparator.AnchorAddressFor(single.Address), e.op, &single); ok {
				out = append(out, r)
			} else {
				invalid++
			}
		}
		idx = j
	}

	return rescanOutcome{results: out, invalidAddressCount: invalid, elapsed: time.Since(start)}
}

// appendBatchResults copies one chunk spanning every address in batch (§4.8
// step 5) and validates each candidate against it, clamped by
// CHUNK_THRESHOLD and the region's own end.
func appendBatchResults(out []Result, c Comparator, op ScanOp, batch []Result, firstAnchor uint64, region safememory.Region, invalid *int64) []Result {
	size := dataSize(c)
	before := c.SizeBefore()
	lastAnchor := c.AnchorAddressFor(batch[len(batch)-1].Address)

	chunkLen := int((lastAnchor + uint64(size)) - firstAnchor)
	if chunkLen > ChunkThreshold {
		chunkLen = ChunkThreshold
	}
	if firstAnchor+uint64(chunkLen) > uint64(region.End()) {
		chunkLen = int(uint64(region.End()) - firstAnchor)
	}
	if chunkLen <= 0 {
		*invalid += int64(len(batch))
		return out
	}

	chunkBase := uintptr(firstAnchor) - uintptr(before)
	buf := make([]byte, chunkLen+before)
	if !safeCopy(buf, chunkBase) {
		*invalid += int64(len(batch))
		return out
	}

	for _, res := range batch {
		anchorAddr := c.AnchorAddressFor(res.Address)
		offset := before + int(anchorAddr-firstAnchor)
		r, ok := c.ValidateInBuffer(buf, offset, anchorAddr, op, &res)
		if !ok {
			*invalid++
			continue
		}
		out = append(out, r)
	}
	return out
}

// findContainingRegion returns the region covering addr, via binary search
// over regions sorted ascending by Base.
func findContainingRegion(regions []safememory.Region, addr uintptr) (safememory.Region, bool) {
	i := sort.Search(len(regions), func(i int) bool { return regions[i].Base > addr })
	if i == 0 {
		return safememory.Region{}, false
	}
	r := regions[i-1]
	if !r.Contains(addr) {
		return safememory.Region{}, false
	}
	return r, true
}
