package scanner

import (
	"context"

	"github.com/coldtrace/memscan/internal/arena"
	"github.com/coldtrace/memscan/internal/safememory"
)

// regionWalker enumerates the host's safely-readable virtual regions via a
// Prober, excluding every region whose base matches the scanner arena's own
// allocation bases (§4.6). It holds no state beyond the enumeration
// snapshot it hands back.
type regionWalker struct {
	prober safememory.Prober
	arena  *arena.Arena
}

func newRegionWalker(prober safememory.Prober, a *arena.Arena) *regionWalker {
	return &regionWalker{prober: prober, arena: a}
}

// walk returns the current snapshot of readable regions, arena-owned slabs
// excluded. It may be stale by the time the caller reads from it — that is
// the probe's documented contract, not a bug here.
func (w *regionWalker) walk(ctx context.Context) ([]safememory.Region, error) {
	regions, err := w.prober.EnumerateReadableRegions(ctx, 0)
	if err != nil {
		return nil, err
	}
	excluded := w.arena.Bases()
	if len(excluded) == 0 {
		return regions, nil
	}
	excludeSet := make(map[uintptr]struct{}, len(excluded))
	for _, b := range excluded {
		excludeSet[b] = struct{}{}
	}
	out := regions[:0:0]
	for _, r := range regions {
		if _, skip := excludeSet[r.Base]; skip {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
