//go:build !linux && !windows

package safememory

import (
	"context"
	"errors"
)

// Unsupported stands in for platforms without a native prober in this
// rendition. It reports every range as inaccessible rather than guessing;
// callers on these platforms are expected to supply Synthetic or a
// hand-written Prober instead, the same way tests do.
type Unsupported struct{}

func NewUnsupported() *Unsupported { return &Unsupported{} }

var errUnsupported = errors.New("safememory: no native probe implementation for this platform")

func (u *Unsupported) IsReadable(context.Context, uintptr, uintptr) (bool, error) { return false, nil }
func (u *Unsupported) IsWritable(context.Context, uintptr, uintptr) (bool, error) { return false, nil }
func (u *Unsupported) AccessiblePrefix(context.Context, uintptr, uintptr) (uintptr, error) {
	return 0, nil
}
func (u *Unsupported) EnumerateReadableRegions(context.Context, uintptr) ([]Region, error) {
	return nil, errUnsupported
}

// NewDefault constructs this platform's Prober implementation.
func NewDefault() Prober { return NewUnsupported() }
