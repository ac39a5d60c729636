package scanner

import "sort"

// resultStore is the scanner's candidate set. First-scan replaces it
// wholesale; rescan replaces it with a filtered copy. SortByAddress is
// stable because results are nearly-sorted after the previous scan (the
// region walker visits regions in roughly ascending order), so a stable
// sort costs little over an already-ordered input.
type resultStore struct {
	results []Result
}

func (s *resultStore) reset() { s.results = nil }

func (s *resultStore) replace(with []Result) { s.results = with }

func (s *resultStore) len() int { return len(s.results) }

func (s *resultStore) sortByAddress() {
	sort.SliceStable(s.results, func(i, j int) bool {
		return s.results[i].Address < s.results[j].Address
	})
}

// slice returns a copy of results[offset:offset+limit], clamped to bounds.
// A limit of 0 means "no limit".
func (s *resultStore) slice(offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.results) {
		return nil
	}
	end := len(s.results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]Result, end-offset)
	copy(out, s.results[offset:end])
	return out
}
