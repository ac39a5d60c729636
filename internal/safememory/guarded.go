package safememory

import (
	"context"
	"log/slog"
	"time"

	"github.com/coldtrace/memscan/internal/resilience"
)

// Guarded wraps a Prober with the retry-and-circuit-breaker hardening
// SPEC_FULL.md's AMBIENT STACK assigns to probe reads: a transient error
// (a /proc/self/maps read racing a fork, an intermittent VirtualQuery
// failure) is retried a few times before giving up, and a probe source
// that keeps failing trips the breaker so the region walker stops
// hammering it and degrades to "no regions this pass" instead of stalling
// a scan indefinitely.
type Guarded struct {
	inner   Prober
	breaker *resilience.CircuitBreaker
}

// NewGuarded wraps inner with retry-on-transient-error and a circuit
// breaker tuned for a fast, local, rarely-failing resource: a handful of
// samples is enough to judge health, and the breaker re-probes quickly.
func NewGuarded(inner Prober) *Guarded {
	return &Guarded{
		inner:   inner,
		breaker: resilience.NewCircuitBreakerAdaptive(10*time.Second, 5, 5, 0.6, 2*time.Second, 2),
	}
}

func (g *Guarded) call(ctx context.Context, fn func() (any, error)) (any, error) {
	if !g.breaker.Allow() {
		return nil, errUnsupportedProbe
	}
	v, err := resilience.Retry(ctx, 3, 10*time.Millisecond, func() (any, error) {
		return fn()
	})
	g.breaker.RecordResult(err == nil)
	if err != nil {
		slog.Warn("safememory: probe call failed after retries", "error", err)
	}
	return v, err
}

var errUnsupportedProbe = probeUnavailable{}

type probeUnavailable struct{}

func (probeUnavailable) Error() string { return "safememory: probe circuit open" }

func (g *Guarded) IsReadable(ctx context.Context, addr uintptr, size uintptr) (bool, error) {
	v, err := g.call(ctx, func() (any, error) { return g.inner.IsReadable(ctx, addr, size) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (g *Guarded) IsWritable(ctx context.Context, addr uintptr, size uintptr) (bool, error) {
	v, err := g.call(ctx, func() (any, error) { return g.inner.IsWritable(ctx, addr, size) })
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (g *Guarded) AccessiblePrefix(ctx context.Context, addr uintptr, requested uintptr) (uintptr, error) {
	v, err := g.call(ctx, func() (any, error) { return g.inner.AccessiblePrefix(ctx, addr, requested) })
	if err != nil {
		return 0, err
	}
	return v.(uintptr), nil
}

func (g *Guarded) EnumerateReadableRegions(ctx context.Context, excludeBase uintptr) ([]Region, error) {
	v, err := g.call(ctx, func() (any, error) { return g.inner.EnumerateReadableRegions(ctx, excludeBase) })
	if err != nil {
		return nil, err
	}
	return v.([]Region), nil
}
