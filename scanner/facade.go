package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/coldtrace/memscan/internal/arena"
	"github.com/coldtrace/memscan/internal/safememory"
	"github.com/coldtrace/memscan/internal/telemetry"
)

var (
	sharedArenaOnce sync.Once
	sharedArenaVal  *arena.Arena

	sharedProberOnce sync.Once
	sharedProberVal  safememory.Prober
)

// sharedArena is the process-wide arena (§4.2, §5): one per process,
// regardless of how many Scanner instances are constructed. The region
// walker excludes its slabs from every scan. Scanner state itself (results,
// search sequences, struct patterns, scratch buffers) is allocated from the
// Go heap, not from the arena.
func sharedArena() *arena.Arena {
	sharedArenaOnce.Do(func() { sharedArenaVal = arena.New() })
	return sharedArenaVal
}

// sharedProber is the process-wide, circuit-broken memory probe every
// Scanner's region walker queries.
func sharedProber() safememory.Prober {
	sharedProberOnce.Do(func() { sharedProberVal = safememory.NewGuarded(safememory.NewDefault()) })
	return sharedProberVal
}

// state is the Scanner lifecycle of §4.8.
type state int

const (
	stateFresh state = iota
	stateAfterFirstScan
	stateSaturated
	stateExhausted
)

// Scanner is the facade of §4.9: lifecycle, configuration, scan dispatch,
// error accumulation, and timing, one per data-type-and-target
// configuration. A Scanner serves at most one in-flight scan; concurrent
// calls on the same instance are the caller's responsibility to prevent
// (§5), so Scanner methods take no lock; the only lock is the first-scan
// engine's merge mutex, held while a worker merges its results.
type Scanner struct {
	id uuid.UUID

	dataType    DataType
	maxResults  int
	alignment   int
	checkTiming bool

	arena  *arena.Arena
	prober safememory.Prober
	walker *regionWalker

	metrics scanMetrics

	state             state
	store             resultStore
	errs              errorLog
	firstScanDone     bool
	maxResultsReached bool
	lastScanOp        ScanOp
	invalidAddrCount  int64

	searchSequence *SearchSequence
	structPattern  *StructPattern
}

// New constructs a Scanner for dataType. maxResults and alignment must be
// ≥ 1; a non-positive alignment defaults to the scalar type's width, or 1
// for sequence/struct types.
func New(dataType DataType, maxResults int, alignment int, checkTiming bool) (*Scanner, error) {
	if maxResults <= 0 {
		return nil, newErr(BadConfig, "max_results must be positive, got %d", maxResults)
	}
	if alignment <= 0 {
		if dataType.IsScalar() {
			alignment = dataType.Size()
		} else {
			alignment = 1
		}
	}

	a := sharedArena()
	prober := sharedProber()
	return &Scanner{
		id:          uuid.New(),
		dataType:    dataType,
		maxResults:  maxResults,
		alignment:   alignment,
		checkTiming: checkTiming,
		arena:       a,
		prober:      prober,
		walker:      newRegionWalker(prober, a),
		metrics:     newScanMetrics(),
		state:       stateFresh,
	}, nil
}

// ID returns this Scanner's correlation identifier, for logs/traces/metrics
// only — it plays no role in scan semantics.
func (s *Scanner) ID() uuid.UUID { return s.id }

// DataType returns the data type this Scanner was constructed with.
func (s *Scanner) DataType() DataType { return s.dataType }

// SetSearchSequence overwrites this scan configuration's byte-sequence
// target, as every scan setup does (§3's "overwritten by each scan setup").
func (s *Scanner) SetSearchSequence(seq *SearchSequence) { s.searchSequence = seq }

// SetStructPattern overwrites this scan configuration's struct target.
func (s *Scanner) SetStructPattern(p *StructPattern) { s.structPattern = p }

// FirstScan runs the region walker, then the parallel chunk-buffered first
// scan, over the host's address space, seeding the result store (§4.7).
func (s *Scanner) FirstScan(ctx context.Context, op ScanOp, target ScanValue) (resultCount int, maxResultsReached bool) {
	ctx, end := telemetry.WithSpan(ctx, "scanner.first_scan")
	defer end()

	if s.firstScanDone {
		s.errs.add(BadOp, "first_scan already done; call reset() first")
		return s.store.len(), s.maxResultsReached
	}

	comparator, err := newComparator(s.dataType, target, s.searchSequence, s.structPattern)
	if err != nil {
		s.errs.add(err.(ScanError).Kind, "%s", err.(ScanError).Message)
		return 0, false
	}
	if err := comparator.ValidateFirstScanOp(op); err != nil {
		s.errs.add(err.(ScanError).Kind, "%s", err.(ScanError).Message)
		return 0, false
	}

	s.store.reset()
	s.errs.reset()
	s.maxResultsReached = false
	s.invalidAddrCount = 0

	regions, err := s.walker.walk(ctx)
	if err != nil {
		s.errs.add(TransientFault, "region enumeration failed: %v", err)
		return 0, false
	}

	engine := &firstScanEngine{comparator: comparator, op: op, alignment: s.alignment, maxResults: s.maxResults}
	outcome := engine.run(regions)

	s.store.replace(outcome.results)
	s.maxResultsReached = outcome.maxResultsReached
	s.firstScanDone = true
	s.lastScanOp = op

	if outcome.faultedChunks > 0 {
		s.errs.add(TransientFault, "skipped %d chunk(s) on fault during first scan", outcome.faultedChunks)
	}
	if outcome.maxResultsReached {
		s.errs.add(Saturated, "result cap of %d reached during first scan", s.maxResults)
		s.state = stateSaturated
	} else {
		s.state = stateAfterFirstScan
	}
	if s.checkTiming {
		s.errs.add(TimingReport, "first scan completed in %s", outcome.elapsed)
	}

	s.metrics.record(ctx, "first_scan", outcome.elapsed, s.store.len(), outcome.faultedChunks, outcome.maxResultsReached)
	return s.store.len(), s.maxResultsReached
}

// Rescan re-validates every existing result against live memory in
// region-batched chunks, replacing the result store with the surviving
// subset (§4.8).
func (s *Scanner) Rescan(ctx context.Context, op ScanOp, target ScanValue) (resultCount int) {
	ctx, end := telemetry.WithSpan(ctx, "scanner.rescan")
	defer end()

	if !s.firstScanDone || s.store.len() == 0 {
		s.errs.add(BadOp, "rescan requires a completed, non-empty first_scan")
		return s.store.len()
	}

	comparator, err := newComparator(s.dataType, target, s.searchSequence, s.structPattern)
	if err != nil {
		s.errs.add(err.(ScanError).Kind, "%s", err.(ScanError).Message)
		return s.store.len()
	}
	if err := comparator.ValidateRescanOp(op); err != nil {
		s.errs.add(err.(ScanError).Kind, "%s", err.(ScanError).Message)
		return s.store.len()
	}

	s.store.sortByAddress()

	regions, err := s.walker.walk(ctx)
	if err != nil {
		s.errs.add(TransientFault, "region enumeration failed: %v", err)
		return s.store.len()
	}

	engine := &rescanEngine{comparator: comparator, op: op}
	outcome := engine.run(ctx, s.store.results, regions)

	s.store.replace(outcome.results)
	s.invalidAddrCount += outcome.invalidAddressCount
	s.lastScanOp = op

	if outcome.invalidAddressCount > 0 {
		s.errs.add(TransientFault, "dropped %d candidate(s) to unreadable memory during rescan", outcome.invalidAddressCount)
	}
	if s.store.len() == 0 {
		s.state = stateExhausted
	} else {
		s.state = stateAfterFirstScan
	}
	if s.checkTiming {
		s.errs.add(TimingReport, "rescan completed in %s", outcome.elapsed)
	}

	s.metrics.record(ctx, "rescan", outcome.elapsed, s.store.len(), outcome.invalidAddressCount, false)
	return s.store.len()
}

// Reset returns the Scanner to its pre-first-scan state, with the current
// configuration preserved.
func (s *Scanner) Reset() {
	s.store.reset()
	s.errs.reset()
	s.firstScanDone = false
	s.maxResultsReached = false
	s.invalidAddrCount = 0
	s.state = stateFresh
}

// Results returns a copy of results[offset:offset+limit] (limit 0 = no
// limit), in whatever order the result store currently holds them.
//
// readValues additionally re-reads each returned result's live bytes into
// Result.Bytes, per §6's results(opts) contract. It is only meaningful for
// sequence scanners (String/ByteArray) whose last scan op was Not — the
// only case where the matched bytes themselves are unknown, since Exact
// already matched the target pattern and scalar results already carry
// Value. It is rejected outright for struct scanners, and rejected for
// sequence scanners when last_scan_op != Not. A result whose live read
// faults keeps Bytes nil rather than failing the whole call.
func (s *Scanner) Results(offset, limit int, readValues bool) ([]Result, error) {
	out := s.store.slice(offset, limit)
	if !readValues {
		return out, nil
	}
	if s.dataType == Struct {
		return nil, newErr(BadOp, "read_values is not supported for struct scanners")
	}
	if s.dataType.IsScalar() {
		return out, nil
	}
	if s.lastScanOp != Not {
		return nil, newErr(BadOp, "read_values is only valid for sequence scanners when last_scan_op is not")
	}
	n := len(s.searchSequence.Bytes)
	for i := range out {
		if b, ok := rereadLiveBytes(out[i].Address, n); ok {
			out[i].Bytes = b
		}
	}
	return out, nil
}

// ResultCount returns the current result store size.
func (s *Scanner) ResultCount() int { return s.store.len() }

// Errors returns the accumulated, human-readable error log.
func (s *Scanner) Errors() []string { return s.errs.strings() }

// InvalidCount returns the cumulative count of candidates dropped to
// unreadable memory across every rescan since the last reset.
func (s *Scanner) InvalidCount() int64 { return s.invalidAddrCount }

// String is for diagnostic logging only.
func (s *Scanner) String() string {
	return fmt.Sprintf("Scanner{id=%s, type=%s, results=%d, state=%d}", s.id, s.dataType, s.store.len(), s.state)
}
