package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrRetriesExhausted is wrapped by ExhaustedError.
var ErrRetriesExhausted = errors.New("retry limit exhausted")

// ExhaustedError reports that no free variant of Path was found.
type ExhaustedError struct {
	Path     string
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no free name for %q after %d attempts", e.Path, e.Attempts)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrRetriesExhausted
}

// Variant returns the n-th collision variant of path: "<stem> (n)<ext>".
// Variant 0 is path itself.
func Variant(path string, n int) string {
	if n == 0 {
		return path
	}

	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}

	return filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
}

// ClaimFile atomically creates an empty file at candidate, or at the first
// free "<stem> (n)<ext>" variant with n in [1, retryLimit]. The create is
// exclusive, so two claims never return the same path.
func ClaimFile(candidate string, retryLimit int) (string, error) {
	return claim(candidate, retryLimit, func(p string) error {
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return err
		}
		return f.Close()
	})
}

// ClaimDir is ClaimFile for directories, using an exclusive mkdir.
// Parent directories are created when missing.
func ClaimDir(candidate string, retryLimit int) (string, error) {
	if err := EnsureDir(filepath.Dir(candidate)); err != nil {
		return "", err
	}

	return claim(candidate, retryLimit, func(p string) error {
		return os.Mkdir(p, 0o755)
	})
}

// EnsureDir creates dir and its parents if absent. Existing directories are reused.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

func claim(candidate string, retryLimit int, create func(string) error) (string, error) {
	if retryLimit < 0 {
		retryLimit = 0
	}

	for n := 0; n <= retryLimit; n++ {
		p := Variant(candidate, n)

		err := create(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("claim %q: %w", p, err)
		}
	}

	return "", &ExhaustedError{Path: candidate, Attempts: retryLimit + 1}
}
