package scanner

import (
	"runtime"
	"runtime/debug"
	"unsafe"
)

// The original engine wraps every live read of host memory in a
// structured-exception handler that turns an access violation into a false
// return. debug.SetPanicOnFault is the Go runtime's equivalent: it tells the
// runtime to deliver a recoverable panic instead of crashing the process
// when code faults at a non-Go-managed address, exactly the translation
// SPEC_FULL.md §5 calls for. The setting applies only to the calling
// goroutine, so safeCopy and safeReadByte each turn it on for the duration
// of their own read and restore the previous setting afterwards; init turns
// it on for the goroutine that runs package initialization.
func init() {
	debug.SetPanicOnFault(true)
}

// safeCopy copies len(dst) bytes starting at addr into dst. It reports
// false, copying nothing useful into dst, if the read faults partway
// through — the caller must treat a false return as "this chunk is
// unavailable right now" and drop it, never as a partial result.
func safeCopy(dst []byte, addr uintptr) (ok bool) {
	if len(dst) == 0 {
		return true
	}
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			if _, isRuntimeFault := r.(runtime.Error); isRuntimeFault {
				ok = false
				return
			}
			panic(r)
		}
	}()
	src := unsafe.Slice((*byte)(unsafe.Pointer(addr)), len(dst)) //nolint:govet // intentional raw memory scan
	copy(dst, src)
	return true
}

// safeReadByte reads a single byte at addr under the same fault guard. It
// backs rereadLiveBytes, the byte-for-byte live-memory reconstruction
// read_values uses to show a sequence scanner's current Not-result bytes —
// an occasional, display-only read where a loop of single-byte guarded
// reads is simpler than allocating a reusable chunk buffer.
func safeReadByte(addr uintptr) (b byte, ok bool) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			if _, isRuntimeFault := r.(runtime.Error); isRuntimeFault {
				ok = false
				return
			}
			panic(r)
		}
	}()
	b = *(*byte)(unsafe.Pointer(addr))
	return b, true
}

// rereadLiveBytes reads n live bytes at addr one at a time, returning
// ok=false (and no bytes) if any of them fault.
func rereadLiveBytes(addr uint64, n int) ([]byte, bool) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := safeReadByte(uintptr(addr) + uintptr(i))
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}
