package assetsync

import (
	"context"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	syncmgr "github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/sync"
)

// Result is the outcome of a sync run.
type Result struct {
	// Summary is the machine-readable run report
	Summary assettypes.Summary

	// Plan is the plan that was executed, or would have been on a dry run
	Plan *assettypes.Plan

	// Uploads holds one result per planned upload, in plan order; nil on a dry run
	Uploads []assettypes.OperationResult

	// Deletes holds one result per planned delete, in plan order; nil on a dry run
	Deletes []assettypes.OperationResult
}

// Sync scans the configured roots and brings the bucket in line with them.
//
// Fatal errors (invalid configuration, cancelled scan, failed inventory) are
// returned as err. Individual upload and delete failures do not abort the
// run; they are counted in Summary and listed in Summary.Failures.
func (c *Client) Sync(ctx context.Context, opts ...assettypes.SyncOption) (*Result, error) {
	cfg := defaultSyncConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = osfs.New(cfg.Base)
	}

	res, err := syncmgr.NewManager(c.store, c.logger, c.metrics).Sync(ctx, cfg.Roots, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{Summary: res.Summary, Plan: res.Plan}
	if res.Execution != nil {
		result.Uploads = res.Execution.UploadResult.Results
		result.Deletes = res.Execution.DeleteResult.Results
	}
	return result, nil
}

// Plan runs a sync as a dry run and returns the plan it would execute.
func (c *Client) Plan(ctx context.Context, opts ...assettypes.SyncOption) (*Result, error) {
	return c.Sync(ctx, append(opts, WithDryRun(true))...)
}

// ValidateSync checks sync options without contacting the store.
func (c *Client) ValidateSync(opts ...assettypes.SyncOption) error {
	cfg := defaultSyncConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = osfs.New(cfg.Base)
	}
	return syncmgr.NewManager(c.store, c.logger, nil).Validate(cfg.Roots, cfg)
}

func defaultSyncConfig() *assettypes.SyncConfig {
	return &assettypes.SyncConfig{
		Base: ".",
		InclusionRules: []assettypes.InclusionRule{
			{Ext: "*", MinSize: assettypes.DefaultSmallFileThreshold},
			{Ext: "pdf", MinSize: 0},
		},
		DeletionRules: assettypes.DeletionRules{
			SmallFileThreshold: assettypes.DefaultSmallFileThreshold,
			ProtectedExts:      []string{"pdf"},
		},
		Digest:          assettypes.DigestMD5,
		Concurrency:     assettypes.DefaultConcurrency,
		DeleteBatchSize: assettypes.DefaultDeleteBatchSize,
		CacheControl:    assettypes.DefaultCacheControl,
		PublicRead:      true,
	}
}
