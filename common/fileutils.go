package common

import (
	"fmt"
	"os"
	"path/filepath"
)

func FileExists(fn string) bool {
	s, err := os.Stat(fn)
	return err == nil && !s.IsDir()
}

// WriteFileAtomic writes data to <fn>.tmp and renames it into place, so readers
// never observe a partially written file
func WriteFileAtomic(fn string, data []byte) error {
	return WriteAtomic(fn, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// WriteAtomic creates <fn>.tmp, hands it to write, syncs and renames it to fn.
// The temp file is removed on any error.
func WriteAtomic(fn string, write func(f *os.File) error) error {
	tmpFn := fn + ".tmp"
	f, err := os.OpenFile(tmpFn, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("os.OpenFile: %w", err)
	}

	if err = write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpFn)
		return err
	}

	if err = f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpFn)
		return fmt.Errorf("f.Sync: %w", err)
	}

	if err = f.Close(); err != nil {
		_ = os.Remove(tmpFn)
		return fmt.Errorf("f.Close: %w", err)
	}

	if err = os.Rename(tmpFn, fn); err != nil {
		_ = os.Remove(tmpFn)
		return fmt.Errorf("os.Rename %s: %w", filepath.Base(fn), err)
	}
	return nil
}
