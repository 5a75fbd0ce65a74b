// Package testutil provides in-memory filesystem fixtures.
package testutil

import (
	"math/rand"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

// KiB and MiB are size helpers for fixtures.
const (
	KiB = 1024
	MiB = 1024 * KiB
)

// Tree builds an in-memory filesystem for scanner and pipeline tests.
type Tree struct {
	t  *testing.T
	fs billy.Filesystem
}

// NewTree creates an empty in-memory tree.
func NewTree(t *testing.T) *Tree {
	t.Helper()
	return &Tree{t: t, fs: memfs.New()}
}

// File writes data at path, creating parent directories.
func (tr *Tree) File(path string, data []byte) *Tree {
	tr.t.Helper()
	if err := util.WriteFile(tr.fs, path, data, 0o644); err != nil {
		tr.t.Fatalf("write %s: %v", path, err)
	}
	return tr
}

// Sized writes a file of size bytes whose content is derived from seed.
// Equal seeds and sizes produce byte-identical files.
func (tr *Tree) Sized(path string, size int, seed int64) *Tree {
	tr.t.Helper()
	return tr.File(path, Content(size, seed))
}

// FS returns the underlying filesystem.
func (tr *Tree) FS() billy.Filesystem {
	return tr.fs
}

// Content returns size deterministic pseudo-random bytes for seed.
func Content(size int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	data := make([]byte, size)
	_, _ = r.Read(data)
	return data
}
