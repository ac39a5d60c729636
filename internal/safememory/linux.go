//go:build linux

package safememory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Linux is a Prober backed by /proc/self/maps, the kernel's own account of
// this process's mapped regions and their protection. It is the Go
// rendition of safememory.cpp's is_mbi_safe/get_heap_regions, translated
// from VirtualQuery's MEMORY_BASIC_INFORMATION to the /proc/self/maps line
// format — both describe the same thing (committed state, protection bits,
// a base and a size) via different kernel interfaces.
type Linux struct{}

// NewLinux constructs a Linux memory prober.
func NewLinux() *Linux { return &Linux{} }

type mapping struct {
	start, end uintptr
	readable   bool
	writable   bool
}

func (m mapping) size() uintptr { return m.end - m.start }

func readMaps() ([]mapping, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, fmt.Errorf("safememory: open /proc/self/maps: %w", err)
	}
	defer f.Close()

	var out []mapping
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err := strconv.ParseUint(bounds[0], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(bounds[1], 16, 64)
		if err != nil {
			continue
		}
		perms := fields[1]
		out = append(out, mapping{
			start:    uintptr(start),
			end:      uintptr(end),
			readable: strings.HasPrefix(perms, "r"),
			writable: len(perms) > 1 && perms[1] == 'w',
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("safememory: scan /proc/self/maps: %w", err)
	}
	return out, nil
}

func findMapping(maps []mapping, addr uintptr) (mapping, bool) {
	for _, m := range maps {
		if addr >= m.start && addr < m.end {
			return m, true
		}
	}
	return mapping{}, false
}

func (l *Linux) IsReadable(_ context.Context, addr uintptr, size uintptr) (bool, error) {
	maps, err := readMaps()
	if err != nil {
		return false, err
	}
	m, ok := findMapping(maps, addr)
	if !ok || !m.readable {
		return false, nil
	}
	return addr+size <= m.end, nil
}

func (l *Linux) IsWritable(_ context.Context, addr uintptr, size uintptr) (bool, error) {
	maps, err := readMaps()
	if err != nil {
		return false, err
	}
	m, ok := findMapping(maps, addr)
	if !ok || !m.writable {
		return false, nil
	}
	return addr+size <= m.end, nil
}

func (l *Linux) AccessiblePrefix(_ context.Context, addr uintptr, requested uintptr) (uintptr, error) {
	maps, err := readMaps()
	if err != nil {
		return 0, err
	}
	m, ok := findMapping(maps, addr)
	if !ok || !m.readable {
		return 0, nil
	}
	avail := m.end - addr
	if avail > requested {
		avail = requested
	}
	return avail, nil
}

func (l *Linux) EnumerateReadableRegions(_ context.Context, excludeBase uintptr) ([]Region, error) {
	maps, err := readMaps()
	if err != nil {
		return nil, err
	}
	out := make([]Region, 0, len(maps))
	for _, m := range maps {
		if !m.readable {
			continue
		}
		if m.start == excludeBase {
			continue
		}
		out = append(out, Region{Base: m.start, Size: m.size()})
	}
	return out, nil
}

// NewDefault constructs this platform's Prober implementation.
func NewDefault() Prober { return NewLinux() }
