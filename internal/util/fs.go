package util

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// link is swapped in tests to simulate a racing writer or a filesystem
// without hard links.
var link = os.Link

// Move moves src to dst without ever replacing an existing dst. On one
// filesystem the file is hard linked to dst and the source name removed, so
// the kernel refuses a dst that appears after any earlier check. Across
// filesystems the file is copied into an exclusively created dst, synced and
// the source removed.
func Move(src, dst string) (int64, error) {
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	err = link(src, dst)
	switch {
	case err == nil:
		if err := os.Remove(src); err != nil {
			os.Remove(dst)
			return 0, fmt.Errorf("remove %s after link: %w", src, err)
		}
		return info.Size(), nil
	case errors.Is(err, fs.ErrExist):
		return 0, fmt.Errorf("move %s: %w", dst, fs.ErrExist)
	case errors.Is(err, syscall.EXDEV):
		return copyAndRemove(src, dst, info)
	}

	// No hard links here (FAT, some network mounts)
	if _, err := os.Lstat(dst); err == nil {
		return 0, fmt.Errorf("move %s: %w", dst, fs.ErrExist)
	}
	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, syscall.EXDEV) {
			return copyAndRemove(src, dst, info)
		}
		return 0, err
	}
	return info.Size(), nil
}

func copyAndRemove(src, dst string, info fs.FileInfo) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	if err := os.Remove(src); err != nil {
		return n, fmt.Errorf("remove %s after copy: %w", src, err)
	}
	return n, nil
}

// MissingDirs returns the directories MkdirAll(dir) would create, outermost first.
func MissingDirs(dir string) []string {
	var missing []string
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}
	for i, j := 0, len(missing)-1; i < j; i, j = i+1, j-1 {
		missing[i], missing[j] = missing[j], missing[i]
	}
	return missing
}

// IsEmptyDir reports whether path is a directory with no entries.
func IsEmptyDir(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}
