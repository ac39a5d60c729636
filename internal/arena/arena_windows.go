//go:build windows

package arena

import "errors"

// No private-heap mapping is implemented for Windows in this rendition; the
// arena runs permanently in degraded mode on this platform, which is an
// accepted consequence per DESIGN.md's Open Question 1, not a crash path.
// The safe-memory probe (internal/safememory) still gets a real Windows
// implementation via golang.org/x/sys/windows, since that is the component
// the spec actually requires to be OS-accurate; the arena's exclusion
// property is best-effort everywhere outside its primary unix target.
func newSlab(size int) (*slab, error) {
	return nil, errors.New("arena: private heap mapping not implemented on windows")
}

func unmapSlab(*slab) error { return nil }
