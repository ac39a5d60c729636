//go:build linux || darwin || freebsd

package arena

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func newSlab(size int) (*slab, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &slab{base: uintptr(unsafe.Pointer(&data[0])), data: data}, nil
}

func unmapSlab(s *slab) error {
	return unix.Munmap(s.data)
}
