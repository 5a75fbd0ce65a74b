package scanner

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/rules"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/testutil"
)

// failingFS fails to open a single path.
type failingFS struct {
	billy.Filesystem
	fail string
}

func (f failingFS) Open(name string) (billy.File, error) {
	if name == f.fail {
		return nil, fmt.Errorf("permission denied")
	}
	return f.Filesystem.Open(name)
}

func newScanner(t *testing.T, fs billy.Filesystem, ruleSet []assettypes.InclusionRule, opts ...Option) *Scanner {
	t.Helper()
	inclusion, err := rules.NewInclusion(ruleSet)
	require.NoError(t, err)
	s, err := New(fs, inclusion, opts...)
	require.NoError(t, err)
	return s
}

func relPaths(assets []assettypes.Asset) []string {
	paths := make([]string, 0, len(assets))
	for _, a := range assets {
		paths = append(paths, a.RelPath)
	}
	return paths
}

func TestScan_InclusionBySize(t *testing.T) {
	tree := testutil.NewTree(t).
		Sized("static/img/big.jpg", 600*testutil.KiB, 1).
		Sized("static/img/small.jpg", 400*testutil.KiB, 2).
		Sized("static/img/other.png", 600*testutil.KiB, 3)

	s := newScanner(t, tree.FS(), []assettypes.InclusionRule{{Ext: "jpg", MinSize: 500 * testutil.KiB}})

	assets, stats, err := s.Scan(context.Background(), []assettypes.Root{{Path: "static"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"static/img/big.jpg"}, relPaths(assets))
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.Included)
	assert.Equal(t, 2, stats.BelowRules)
	assert.Equal(t, int64(600*testutil.KiB), stats.Bytes)
	assert.Equal(t, "jpg", assets[0].Rule.Ext)
}

func TestScan_AssetFields(t *testing.T) {
	data := testutil.Content(2048, 7)
	tree := testutil.NewTree(t).
		File("static/img/logo.png", data).
		File("public/img/logo.png", data)

	s := newScanner(t, tree.FS(), []assettypes.InclusionRule{{Ext: "*"}})

	assets, _, err := s.Scan(context.Background(), []assettypes.Root{
		{Path: "static", Priority: 0},
		{Path: "public", Priority: 2},
	})
	require.NoError(t, err)
	require.Len(t, assets, 2)

	sum := md5.Sum(data)
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, "static/img/logo.png", assets[0].RelPath)
	assert.Equal(t, "static", assets[0].Root)
	assert.Equal(t, 0, assets[0].Priority)
	assert.Equal(t, want, assets[0].Digest)
	assert.Equal(t, int64(2048), assets[0].Size)
	assert.Equal(t, "image/png", assets[0].ContentType)

	assert.Equal(t, "public/img/logo.png", assets[1].RelPath)
	assert.Equal(t, 2, assets[1].Priority)
	assert.Equal(t, want, assets[1].Digest)
}

func TestScan_SHA256(t *testing.T) {
	data := testutil.Content(100*1024+3, 9)
	tree := testutil.NewTree(t).File("assets/doc.pdf", data)

	s := newScanner(t, tree.FS(), []assettypes.InclusionRule{{Ext: "pdf"}}, WithDigest(assettypes.DigestSHA256))

	assets, _, err := s.Scan(context.Background(), []assettypes.Root{{Path: "assets"}})
	require.NoError(t, err)
	require.Len(t, assets, 1)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), assets[0].Digest)
	assert.Equal(t, "application/pdf", assets[0].ContentType)
}

func TestScan_ExcludePatterns(t *testing.T) {
	tree := testutil.NewTree(t).
		Sized("static/pdfjs/web/viewer.pdf", 10, 1).
		Sized("static/guide.pdf", 10, 2).
		Sized("static/draft.tmp", 10, 3).
		File(".syncignore", []byte("*.tmp\n"))

	matcher, err := NewPatternMatcher([]string{"**/pdfjs/**"})
	require.NoError(t, err)
	loaded, err := matcher.LoadIgnoreFile(tree.FS(), ".syncignore")
	require.NoError(t, err)
	assert.True(t, loaded)

	s := newScanner(t, tree.FS(), []assettypes.InclusionRule{{Ext: "*"}}, WithPatternMatcher(matcher))

	assets, stats, err := s.Scan(context.Background(), []assettypes.Root{{Path: "static"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"static/guide.pdf"}, relPaths(assets))
	assert.Equal(t, 1, stats.Excluded)
}

func TestPatternMatcher_MissingIgnoreFile(t *testing.T) {
	matcher, err := NewPatternMatcher(nil)
	require.NoError(t, err)

	loaded, err := matcher.LoadIgnoreFile(testutil.NewTree(t).FS(), ".syncignore")
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.False(t, matcher.Excluded("static/a.png"))
}

func TestPatternMatcher_InvalidPattern(t *testing.T) {
	_, err := NewPatternMatcher([]string{"static/**", "[unterminated"})
	require.Error(t, err)

	var perr *PatternError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Index)
}

func TestScan_UnreadableFileIsSkipped(t *testing.T) {
	tree := testutil.NewTree(t).
		Sized("static/a.png", 10, 1).
		Sized("static/b.png", 10, 2)

	fs := failingFS{Filesystem: tree.FS(), fail: "static/a.png"}
	s := newScanner(t, fs, []assettypes.InclusionRule{{Ext: "png"}})

	assets, stats, err := s.Scan(context.Background(), []assettypes.Root{{Path: "static"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"static/b.png"}, relPaths(assets))
	assert.Equal(t, 1, stats.Errors)
}

func TestScan_MissingRoot(t *testing.T) {
	tree := testutil.NewTree(t).Sized("static/a.png", 10, 1)
	s := newScanner(t, tree.FS(), []assettypes.InclusionRule{{Ext: "png"}})

	assets, stats, err := s.Scan(context.Background(), []assettypes.Root{{Path: "static"}, {Path: "assets"}})
	require.NoError(t, err)
	assert.Len(t, assets, 1)
	assert.Equal(t, []string{"assets"}, stats.MissingRoots)
}

func TestScan_Cancelled(t *testing.T) {
	tree := testutil.NewTree(t).Sized("static/a.png", 10, 1)
	s := newScanner(t, tree.FS(), []assettypes.InclusionRule{{Ext: "png"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Scan(ctx, []assettypes.Root{{Path: "static"}})
	require.Error(t, err)
	assert.True(t, errors.IsCancelled(err))
}

func TestWalk_StopsOnCallbackError(t *testing.T) {
	tree := testutil.NewTree(t).
		Sized("static/a.png", 10, 1).
		Sized("static/b.png", 10, 2)
	s := newScanner(t, tree.FS(), []assettypes.InclusionRule{{Ext: "png"}})

	stop := fmt.Errorf("stop")
	calls := 0
	_, err := s.Walk(context.Background(), []assettypes.Root{{Path: "static"}}, func(assettypes.Asset) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestNew_Validation(t *testing.T) {
	inclusion, err := rules.NewInclusion([]assettypes.InclusionRule{{Ext: "png"}})
	require.NoError(t, err)

	_, err = New(nil, inclusion)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = New(testutil.NewTree(t).FS(), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = New(testutil.NewTree(t).FS(), inclusion, WithDigest("crc32"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
