//go:build unix

package mmap

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, size int, hint Hint) ([]byte, error) {
	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}

	var advice int
	switch hint {
	case Sequential:
		advice = unix.MADV_SEQUENTIAL
	case Random:
		advice = unix.MADV_RANDOM
	default:
		return b, nil
	}
	// ENOSYS still leaves a working mapping.
	if err := unix.Madvise(b, advice); err != nil && err != syscall.ENOSYS {
		_ = unix.Munmap(b)
		return nil, fmt.Errorf("madvise %s: %w", f.Name(), err)
	}
	return b, nil
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
