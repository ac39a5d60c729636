package scanner

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coldtrace/memscan/internal/safememory"
)

// firstScanEngine runs the parallel, chunk-buffered full-address-space scan
// of §4.7: a fixed pool of worker goroutines pulls regions off a channel
// (the Go analogue of OpenMP's dynamic, chunk-of-one scheduling), each
// scanning its region into a thread-local results slice using a
// thread-local SCAN_BUFFER_SIZE buffer, merging into the shared store under
// one mutex.
type firstScanEngine struct {
	comparator Comparator
	op         ScanOp
	alignment  int
	maxResults int
}

// firstScanOutcome is everything the facade needs to fold back into scanner
// state after a first scan completes.
type firstScanOutcome struct {
	results           []Result
	maxResultsReached bool
	faultedChunks     int64
	elapsed           time.Duration
}

func (e *firstScanEngine) run(regions []safememory.Region) firstScanOutcome {
	start := time.Now()

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(regions) && len(regions) > 0 {
		workers = len(regions)
	}

	regionCh := make(chan safememory.Region)
	go func() {
		defer close(regionCh)
		for _, r := range regions {
			regionCh <- r
		}
	}()

	var mu sync.Mutex
	shared := make([]Result, 0, e.maxResults)
	var saturated atomic.Bool
	var faultedChunks atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, ScanBufferSize)
			for region := range regionCh {
				if saturated.Load() {
					continue
				}
				local, faulted := scanRegionFirstScan(e.comparator, e.op, e.alignment, region, buf)
				faultedChunks.Add(faulted)
				if len(local) == 0 {
					continue
				}

				mu.Lock()
				if saturated.Load() {
					mu.Unlock()
					continue
				}
				quota := e.maxResults - len(shared)
				if quota <= 0 {
					saturated.Store(true)
					mu.Unlock()
					continue
				}
				if len(local) > quota {
					shared = append(shared, local[:quota]...)
					saturated.Store(true)
				} else {
					shared = append(shared, local...)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return firstScanOutcome{
		results:           shared,
		maxResultsReached: saturated.Load(),
		faultedChunks:     faultedChunks.Load(),
		elapsed:           time.Since(start),
	}
}

// scanRegionFirstScan walks one region in overlapping SCAN_BUFFER_SIZE
// chunks (§4.7 steps 5-7), reusing buf as the thread-local scratch buffer.
// Each chunk after the first starts at the first candidate the previous
// chunk could not check in full: data_size-1 bytes back for anchor-byte
// scans and alignment 1, the next alignment-stepped offset otherwise. Each
// chunk's scan, starting at offset 0 of its buffer, therefore picks up
// exactly where the previous chunk's last checked candidate left off — no
// explicit de-duplication is needed.
func scanRegionFirstScan(c Comparator, op ScanOp, alignment int, region safememory.Region, buf []byte) ([]Result, int64) {
	size := dataSize(c)
	if size <= 0 || size > len(buf) {
		return nil, 0
	}
	overlap := size - 1
	step := len(buf) - overlap
	if _, anchored := c.AnchorByte(); !anchored && alignment > 1 {
		step = ((len(buf)-size)/alignment + 1) * alignment
	}

	var out []Result
	var faulted int64

	pos := region.Base
	end := region.Base + region.Size
	for pos < end {
		chunkLen := len(buf)
		if uintptr(chunkLen) > end-pos {
			chunkLen = int(end - pos)
		}
		bufSlice := buf[:chunkLen]

		if !safeCopy(bufSlice, pos) {
			faulted++
			if chunkLen < len(buf) {
				break
			}
			advance := step
			if advance <= 0 {
				advance = chunkLen
			}
			pos += uintptr(advance)
			continue
		}

		out = append(out, scanChunk(c, op, bufSlice, uint64(pos), alignment)...)

		if chunkLen < len(buf) {
			break // reached the end of the region
		}
		advance := step
		if advance <= 0 {
			advance = chunkLen
		}
		pos += uintptr(advance)
	}

	return out, faulted
}
