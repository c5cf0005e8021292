package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestVariant(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "update.md"), Variant(filepath.Join("out", "update.md"), 0))
	assert.Equal(t, filepath.Join("out", "update (1).md"), Variant(filepath.Join("out", "update.md"), 1))
	assert.Equal(t, filepath.Join("out", "archive.tar (2).gz"), Variant(filepath.Join("out", "archive.tar.gz"), 2))
	assert.Equal(t, filepath.Join("out", "README (3)"), Variant(filepath.Join("out", "README"), 3))
	assert.Equal(t, filepath.Join("out", ".md (1)"), Variant(filepath.Join("out", ".md"), 1))
}

func TestClaimFileSequence(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "update.md")

	first, err := ClaimFile(candidate, 100)
	require.NoError(t, err)
	second, err := ClaimFile(candidate, 100)
	require.NoError(t, err)
	third, err := ClaimFile(candidate, 100)
	require.NoError(t, err)

	assert.Equal(t, candidate, first)
	assert.Equal(t, filepath.Join(dir, "update (1).md"), second)
	assert.Equal(t, filepath.Join(dir, "update (2).md"), third)

	for _, p := range []string{first, second, third} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.False(t, info.IsDir())
	}
}

func TestClaimFileKeepsExistingContent(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(candidate, []byte("old"), 0o644))

	got, err := ClaimFile(candidate, 5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a (1).md"), got)

	b, err := os.ReadFile(candidate)
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
}

func TestClaimFileExhausted(t *testing.T) {
	dir := t.TempDir()
	candidate := filepath.Join(dir, "x.txt")

	for i := 0; i < 3; i++ {
		_, err := ClaimFile(candidate, 2)
		require.NoError(t, err)
	}

	_, err := ClaimFile(candidate, 2)
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, candidate, exhausted.Path)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
}

func TestClaimFileMissingParent(t *testing.T) {
	_, err := ClaimFile(filepath.Join(t.TempDir(), "missing", "a.md"), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestClaimDir(t *testing.T) {
	root := t.TempDir()
	candidate := filepath.Join(root, "nested", "update")

	first, err := ClaimDir(candidate, 25)
	require.NoError(t, err)
	second, err := ClaimDir(candidate, 25)
	require.NoError(t, err)

	assert.Equal(t, candidate, first)
	assert.Equal(t, filepath.Join(root, "nested", "update (1)"), second)
	assert.DirExists(t, second)
}

func TestEnsureDirIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
}

func TestClaimFileYieldsDistinctPaths(t *testing.T) {
	root := t.TempDir()

	rapid.Check(t, func(t *rapid.T) {
		dir, err := os.MkdirTemp(root, "claim")
		if err != nil {
			t.Fatalf("mkdir temp: %v", err)
		}

		name := rapid.StringMatching(`[a-z]{1,8}(\.[a-z]{1,3})?`).Draw(t, "name")
		n := rapid.IntRange(1, 10).Draw(t, "claims")
		candidate := filepath.Join(dir, name)

		seen := make(map[string]struct{}, n)
		for i := 0; i < n; i++ {
			p, err := ClaimFile(candidate, 10)
			if err != nil {
				t.Fatalf("claim %q: %v", candidate, err)
			}
			if _, dup := seen[p]; dup {
				t.Fatalf("path %q returned twice", p)
			}
			if _, err := os.Stat(p); err != nil {
				t.Fatalf("claimed path %q does not exist: %v", p, err)
			}
			seen[p] = struct{}{}
		}
	})
}
