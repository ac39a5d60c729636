//go:build windows

package safememory

import (
	"context"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows is a Prober backed by VirtualQuery, the direct analogue of the
// original safememory.cpp's is_mbi_safe over MEMORY_BASIC_INFORMATION.
type Windows struct {
	minAddr, maxAddr uintptr
}

// NewWindows constructs a Windows memory prober scoped to the process's
// application address range, as reported by GetSystemInfo.
func NewWindows() *Windows {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)
	return &Windows{
		minAddr: uintptr(info.MinimumApplicationAddress),
		maxAddr: uintptr(info.MaximumApplicationAddress),
	}
}

func query(addr uintptr) (windows.MemoryBasicInformation, bool) {
	var mbi windows.MemoryBasicInformation
	n, err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi))
	if err != nil || n == 0 {
		return windows.MemoryBasicInformation{}, false
	}
	return mbi, true
}

// isSafe mirrors is_mbi_safe: committed, not guarded, not PAGE_NOACCESS, and
// carrying the requested permission bit.
func isSafe(mbi windows.MemoryBasicInformation, write bool) bool {
	if mbi.State != windows.MEM_COMMIT {
		return false
	}
	if mbi.Protect&windows.PAGE_GUARD != 0 {
		return false
	}
	if mbi.Protect&windows.PAGE_NOACCESS != 0 {
		return false
	}
	const readable = windows.PAGE_READONLY | windows.PAGE_READWRITE | windows.PAGE_EXECUTE_READ | windows.PAGE_EXECUTE_READWRITE | windows.PAGE_WRITECOPY | windows.PAGE_EXECUTE_WRITECOPY
	const writable = windows.PAGE_READWRITE | windows.PAGE_EXECUTE_READWRITE | windows.PAGE_WRITECOPY | windows.PAGE_EXECUTE_WRITECOPY
	if write {
		return mbi.Protect&writable != 0
	}
	return mbi.Protect&readable != 0
}

func (w *Windows) IsReadable(_ context.Context, addr uintptr, size uintptr) (bool, error) {
	mbi, ok := query(addr)
	if !ok || !isSafe(mbi, false) {
		return false, nil
	}
	end := uintptr(mbi.BaseAddress) + uintptr(mbi.RegionSize)
	return addr+size <= end, nil
}

func (w *Windows) IsWritable(_ context.Context, addr uintptr, size uintptr) (bool, error) {
	mbi, ok := query(addr)
	if !ok || !isSafe(mbi, true) {
		return false, nil
	}
	end := uintptr(mbi.BaseAddress) + uintptr(mbi.RegionSize)
	return addr+size <= end, nil
}

func (w *Windows) AccessiblePrefix(_ context.Context, addr uintptr, requested uintptr) (uintptr, error) {
	mbi, ok := query(addr)
	if !ok || !isSafe(mbi, false) {
		return 0, nil
	}
	end := uintptr(mbi.BaseAddress) + uintptr(mbi.RegionSize)
	avail := end - addr
	if avail > requested {
		avail = requested
	}
	return avail, nil
}

func (w *Windows) EnumerateReadableRegions(_ context.Context, excludeBase uintptr) ([]Region, error) {
	var out []Region
	addr := w.minAddr
	for addr < w.maxAddr {
		mbi, ok := query(addr)
		if !ok {
			break
		}
		base := uintptr(mbi.BaseAddress)
		size := uintptr(mbi.RegionSize)
		if size == 0 {
			break
		}
		allocBase := uintptr(mbi.AllocationBase)
		if isSafe(mbi, false) && allocBase != excludeBase {
			out = append(out, Region{Base: base, Size: size})
		}
		addr = base + size
	}
	return out, nil
}

// NewDefault constructs this platform's Prober implementation.
func NewDefault() Prober { return NewWindows() }
