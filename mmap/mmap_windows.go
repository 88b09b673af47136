package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Hints have no Windows equivalent for file views.
func mmap(f *os.File, size int, _ Hint) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func munmap(b []byte) error {
	if err := windows.UnmapViewOfFile(uintptr(unsafe.Pointer(unsafe.SliceData(b)))); err != nil {
		return os.NewSyscallError("UnmapViewOfFile", err)
	}
	return nil
}
