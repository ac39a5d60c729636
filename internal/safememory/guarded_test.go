package safememory

import (
	"context"
	"errors"
	"testing"
)

// flakyProber fails the first failCount calls to each method, then
// delegates to inner. Used to exercise Guarded's retry path without
// depending on real OS probe failures.
type flakyProber struct {
	inner     Prober
	failCount int
	calls     int
}

func (f *flakyProber) nextErr() error {
	f.calls++
	if f.calls <= f.failCount {
		return errors.New("synthetic transient failure")
	}
	return nil
}

func (f *flakyProber) IsReadable(ctx context.Context, addr uintptr, size uintptr) (bool, error) {
	if err := f.nextErr(); err != nil {
		return false, err
	}
	return f.inner.IsReadable(ctx, addr, size)
}

func (f *flakyProber) IsWritable(ctx context.Context, addr uintptr, size uintptr) (bool, error) {
	if err := f.nextErr(); err != nil {
		return false, err
	}
	return f.inner.IsWritable(ctx, addr, size)
}

func (f *flakyProber) AccessiblePrefix(ctx context.Context, addr uintptr, requested uintptr) (uintptr, error) {
	if err := f.nextErr(); err != nil {
		return 0, err
	}
	return f.inner.AccessiblePrefix(ctx, addr, requested)
}

func (f *flakyProber) EnumerateReadableRegions(ctx context.Context, excludeBase uintptr) ([]Region, error) {
	if err := f.nextErr(); err != nil {
		return nil, err
	}
	return f.inner.EnumerateReadableRegions(ctx, excludeBase)
}

// alwaysFailProber fails every call, for breaker-trip tests.
type alwaysFailProber struct{}

func (alwaysFailProber) IsReadable(ctx context.Context, addr uintptr, size uintptr) (bool, error) {
	return false, errors.New("synthetic permanent failure")
}
func (alwaysFailProber) IsWritable(ctx context.Context, addr uintptr, size uintptr) (bool, error) {
	return false, errors.New("synthetic permanent failure")
}
func (alwaysFailProber) AccessiblePrefix(ctx context.Context, addr uintptr, requested uintptr) (uintptr, error) {
	return 0, errors.New("synthetic permanent failure")
}
func (alwaysFailProber) EnumerateReadableRegions(ctx context.Context, excludeBase uintptr) ([]Region, error) {
	return nil, errors.New("synthetic permanent failure")
}

func TestGuardedPassesThroughSuccessfulCalls(t *testing.T) {
	inner := NewSynthetic(Region{Base: 0x1000, Size: 0x100})
	g := NewGuarded(inner)
	ctx := context.Background()

	ok, err := g.IsReadable(ctx, 0x1000, 0x10)
	if err != nil || !ok {
		t.Fatalf("IsReadable: ok=%v err=%v", ok, err)
	}

	got, err := g.EnumerateReadableRegions(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Base != 0x1000 {
		t.Errorf("got %+v, want one region at 0x1000", got)
	}
}

func TestGuardedRetriesAndRecoversFromTransientFailures(t *testing.T) {
	inner := NewSynthetic(Region{Base: 0x2000, Size: 0x100})
	flaky := &flakyProber{inner: inner, failCount: 2}
	g := NewGuarded(flaky)
	ctx := context.Background()

	ok, err := g.IsReadable(ctx, 0x2000, 0x10)
	if err != nil || !ok {
		t.Fatalf("expected the retry to eventually succeed: ok=%v err=%v", ok, err)
	}
	if flaky.calls != 3 {
		t.Errorf("calls = %d, want 3 (2 failures + 1 success)", flaky.calls)
	}
}

func TestGuardedOpensBreakerAfterRepeatedFailures(t *testing.T) {
	g := NewGuarded(alwaysFailProber{})
	ctx := context.Background()

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = g.IsReadable(ctx, 0x3000, 0x10)
	}
	if lastErr == nil {
		t.Fatal("expected an error after repeated failures")
	}

	if g.breaker.Allow() {
		_, err := g.IsReadable(ctx, 0x3000, 0x10)
		if err == nil {
			t.Error("expected the breaker to eventually stop allowing calls through to a failing prober")
		}
	}
}
