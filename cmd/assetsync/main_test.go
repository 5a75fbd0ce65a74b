package main

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/report"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store/memstore"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/testutil"
)

// useStore routes every command to mem for the duration of the test.
func useStore(t *testing.T, mem *memstore.Store) {
	t.Helper()
	orig := newClient
	newClient = func(_ context.Context, a *app) (syncClient, error) {
		opts := []assettypes.Option{assetsync.WithLogger(a.logger)}
		if a.registry != nil {
			opts = append(opts, assetsync.WithMetrics(a.registry))
		}
		return assetsync.NewWithStore(mem, opts...), nil
	}
	t.Cleanup(func() { newClient = orig })
}

func siteDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"public/img/hero.jpg":   testutil.Content(200*testutil.KiB, 1),
		"public/pdfs/guide.pdf": testutil.Content(3*testutil.KiB, 2),
		"public/css/site.css":   testutil.Content(1*testutil.KiB, 3),
	}
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func storeArgs(command string) []string {
	return []string{command, "--bucket", "site-assets", "--endpoint", "http://localhost:9000"}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, versionString(), strings.TrimSpace(out))
}

func TestPlanCommand(t *testing.T) {
	mem := memstore.New().SeedSize("resources/old.png", 10)
	useStore(t, mem)
	dir := siteDir(t)

	args := append(storeArgs("plan"),
		"--base", dir,
		"--root", "public",
		"--strip-prefix", "public/",
		"--deprecated-prefix", "resources/",
	)
	out, err := execute(t, args...)
	require.NoError(t, err)

	assert.Contains(t, out, "img/hero.jpg")
	assert.Contains(t, out, "pdfs/guide.pdf")
	assert.Contains(t, out, "resources/old.png")
	assert.NotContains(t, out, "css/site.css")
	assert.Contains(t, out, "planned:    2 uploads, 1 deletes")
	assert.Empty(t, mem.Puts())
	assert.Empty(t, mem.DeleteCalls())
}

func TestPlanCommand_JSON(t *testing.T) {
	useStore(t, memstore.New())
	dir := siteDir(t)

	args := append(storeArgs("plan"), "--base", dir, "--root", "public", "--strip-prefix", "public/", "--json")
	out, err := execute(t, args...)
	require.NoError(t, err)

	var r report.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.True(t, r.Healthy)
	assert.True(t, r.Summary.DryRun)
	require.NotNil(t, r.Plan)
	assert.Len(t, r.Plan.Uploads, 2)
}

func TestSyncCommand_WritesArtifacts(t *testing.T) {
	mem := memstore.New()
	useStore(t, mem)
	dir := siteDir(t)
	outDir := t.TempDir()

	args := append(storeArgs("sync"),
		"--base", dir,
		"--root", "public",
		"--strip-prefix", "public/",
		"--public-base-url", "https://cdn.example.com",
		"--summary-file", filepath.Join(outDir, "summary.json"),
		"--mapping-file", filepath.Join(outDir, "mapping.json"),
		"--metrics-file", filepath.Join(outDir, "assetsync.prom"),
		"--lock-file", filepath.Join(outDir, "assetsync.lock"),
	)
	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "uploaded:   2")
	assert.Equal(t, []string{"img/hero.jpg", "pdfs/guide.pdf"}, mem.Keys())

	data, err := os.ReadFile(filepath.Join(outDir, "mapping.json"))
	require.NoError(t, err)
	var mapping []report.UploadEntry
	require.NoError(t, json.Unmarshal(data, &mapping))
	require.Len(t, mapping, 2)
	urls := []string{mapping[0].URL, mapping[1].URL}
	assert.ElementsMatch(t, []string{
		"https://cdn.example.com/img/hero.jpg",
		"https://cdn.example.com/pdfs/guide.pdf",
	}, urls)

	summary, err := os.ReadFile(filepath.Join(outDir, "summary.json"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), `"healthy": true`)

	prom, err := os.ReadFile(filepath.Join(outDir, "assetsync.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), "assetsync_uploads_total")
}

func TestSyncCommand_FailuresExitNonZero(t *testing.T) {
	mem := memstore.New()
	mem.FailPut("img/hero.jpg", stderrors.New("slow down"))
	useStore(t, mem)
	dir := siteDir(t)
	outDir := t.TempDir()

	args := append(storeArgs("sync"),
		"--base", dir,
		"--root", "public",
		"--strip-prefix", "public/",
		"--failed-file", filepath.Join(outDir, "failed.json"),
	)
	out, err := execute(t, args...)
	require.Error(t, err)

	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.code)
	assert.Contains(t, out, "failed upload img/hero.jpg")
	assert.Equal(t, []string{"pdfs/guide.pdf"}, mem.Keys())

	data, err := os.ReadFile(filepath.Join(outDir, "failed.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "img/hero.jpg")
}

func TestSyncCommand_InvalidConfig(t *testing.T) {
	useStore(t, memstore.New())

	_, err := execute(t, "sync", "--root", "public")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = execute(t, append(storeArgs("sync"), "--root", "public", "--include", "jpg")...)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestInventoryCommand(t *testing.T) {
	mem := memstore.New().
		SeedSize("img/hero.jpg", 2048).
		SeedSize("pdfs/guide.pdf", 1024)
	useStore(t, mem)

	out, err := execute(t, "inventory", "--prefix", "img/")
	require.NoError(t, err)
	assert.Contains(t, out, "img/hero.jpg")
	assert.NotContains(t, out, "pdfs/guide.pdf")
	assert.Contains(t, out, "1 objects, 2.0 KiB")
}

func TestPublicAccessCommand_Unsupported(t *testing.T) {
	useStore(t, memstore.New())

	_, err := execute(t, "public-access")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "\x1b[")

	_, err = newLogger(&buf, "loud")
	assert.Error(t, err)
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "invalid config", err: errors.NewError("config.validate", errors.ErrInvalidConfig), want: "fix the configuration"},
		{name: "conflicting rules", err: errors.NewError("rules", errors.ErrConflictingRules), want: "fix the configuration"},
		{name: "access denied", err: errors.NewError("list", errors.ErrAccessDenied), want: "access key"},
		{name: "missing bucket", err: errors.NewError("list", errors.ErrBucketNotFound), want: "bucket name"},
		{name: "inventory", err: errors.NewError("inventory", errors.ErrInventory), want: "could not be listed"},
		{name: "cancelled scan", err: errors.NewError("scan", errors.ErrCancelled), want: "interrupted"},
		{name: "other", err: stderrors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want == "" {
				assert.Empty(t, hint(tt.err))
				return
			}
			assert.Contains(t, hint(tt.err), tt.want)
		})
	}
}
