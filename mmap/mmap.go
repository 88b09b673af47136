// Package mmap maps journal segments into memory for reading and syncs the
// segments being written.
package mmap

import (
	"fmt"
	"os"
)

// Hint tells the kernel how a mapping will be read.
type Hint uint

const (
	Normal Hint = iota
	// Sequential requests aggressive read-ahead (MADV_SEQUENTIAL on Unix).
	Sequential
	// Random disables most read-ahead (MADV_RANDOM on Unix).
	Random
)

// Map maps the whole of f read-only. An empty file maps to nil.
func Map(f *os.File, hint Hint) ([]byte, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return nil, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("mmap: %s is too large to map (%d bytes)", f.Name(), size)
	}
	return mmap(f, int(size), hint)
}

// Unmap releases a mapping returned by Map.
func Unmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return munmap(b)
}

// Fdatasync makes the data written to f durable, skipping metadata such as
// modification times where the platform allows it.
//
// Errors are not recoverable: after a failed sync the kernel may have marked
// the dirty pages clean, so the file contents are unknown.
func Fdatasync(f *os.File) error {
	return fdatasync(f)
}
