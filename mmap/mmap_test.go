package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMap(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "seg")
	ensure(os.WriteFile(fn, []byte("hello, journal"), 0o644))
	f := must(os.Open(fn))
	defer f.Close()

	for _, hint := range []Hint{Normal, Sequential, Random} {
		b, err := Map(f, hint)
		if err != nil {
			t.Fatalf("Map(%d): %v", hint, err)
		}
		if string(b) != "hello, journal" {
			t.Errorf("** got %q, wanted %q", b, "hello, journal")
		}
		if err := Unmap(b); err != nil {
			t.Fatalf("Unmap: %v", err)
		}
	}
}

func TestMap_Empty(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "empty")
	ensure(os.WriteFile(fn, nil, 0o644))
	f := must(os.Open(fn))
	defer f.Close()

	b, err := Map(f, Normal)
	if err != nil || b != nil {
		t.Fatalf("** got %v, %v, wanted nil, nil", b, err)
	}
	if err := Unmap(b); err != nil {
		t.Fatalf("Unmap(nil): %v", err)
	}
}

func TestFdatasync(t *testing.T) {
	f := must(os.Create(filepath.Join(t.TempDir(), "sync")))
	defer f.Close()
	must(f.Write([]byte("data")))
	if err := Fdatasync(f); err != nil {
		t.Fatalf("Fdatasync: %v", err)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
