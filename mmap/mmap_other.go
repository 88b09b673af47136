//go:build !unix && !windows

package mmap

import (
	"io"
	"os"
)

// Without mmap the file is read into memory.
func mmap(f *os.File, size int, _ Hint) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), b); err != nil {
		return nil, err
	}
	return b, nil
}

func munmap(b []byte) error {
	return nil
}
