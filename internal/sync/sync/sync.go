package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/rules"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/dedup"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/executor"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/inventory"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/planner"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/scanner"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/validation"
)

// Result contains the results of a sync run.
type Result struct {
	// Summary is the machine-readable run report
	Summary assettypes.Summary

	// Plan is the plan that was executed, or would have been on a dry run
	Plan *assettypes.Plan

	// Execution holds per-operation outcomes; nil on a dry run
	Execution *executor.ExecutionResult
}

// Manager coordinates the phases of a sync run against one store.
type Manager struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewManager creates a new sync manager. logger and recorder may be nil.
func NewManager(s store.Store, logger *slog.Logger, recorder *metrics.Recorder) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{store: s, logger: logger, metrics: recorder}
}

// components is the per-run pipeline built from validated configuration.
type components struct {
	scanner  *scanner.Scanner
	planner  *planner.Planner
	executor *executor.Executor
}

// Validate checks cfg without touching the store.
func (sm *Manager) Validate(roots []assettypes.Root, cfg *assettypes.SyncConfig) error {
	_, err := sm.build(roots, cfg, sm.logger)
	return err
}

func (sm *Manager) build(roots []assettypes.Root, cfg *assettypes.SyncConfig, logger *slog.Logger) (*components, error) {
	if cfg == nil || cfg.Filesystem == nil {
		return nil, errors.NewError("sync", errors.ErrInvalidConfig).
			WithMessage("a filesystem is required")
	}
	if err := validation.ValidateRoots(roots); err != nil {
		return nil, err
	}
	if err := validation.ValidateKeyPrefix(cfg.KeyPrefix); err != nil {
		return nil, err
	}
	if err := validation.ValidateStripPrefixes(cfg.StripPrefixes); err != nil {
		return nil, err
	}
	if err := validation.ValidateLimits(cfg.Concurrency, cfg.DeleteBatchSize); err != nil {
		return nil, err
	}
	if err := validation.ValidateCacheControl(cfg.CacheControl); err != nil {
		return nil, err
	}

	inclusion, err := rules.NewInclusion(cfg.InclusionRules)
	if err != nil {
		return nil, err
	}

	matcher, err := scanner.NewPatternMatcher(cfg.ExcludePatterns)
	if err != nil {
		return nil, errors.NewError("sync", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err))
	}
	if _, err := matcher.LoadIgnoreFile(cfg.Filesystem, cfg.IgnoreFile); err != nil {
		return nil, errors.NewError("sync", fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err))
	}

	sc, err := scanner.New(cfg.Filesystem, inclusion,
		scanner.WithPatternMatcher(matcher),
		scanner.WithDigest(cfg.Digest),
		scanner.WithLogger(logger),
		scanner.WithMetrics(sm.metrics),
	)
	if err != nil {
		return nil, err
	}

	pl, err := planner.New(planner.Config{
		InclusionRules:  cfg.InclusionRules,
		DeletionRules:   cfg.DeletionRules,
		KeyPrefix:       cfg.KeyPrefix,
		StripPrefixes:   cfg.StripPrefixes,
		Digest:          cfg.Digest,
		ChecksumCompare: cfg.ChecksumCompare,
	})
	if err != nil {
		return nil, err
	}

	ex := executor.NewExecutor(sm.store, cfg.Filesystem, executor.Config{
		Concurrency:     cfg.Concurrency,
		DeleteBatchSize: cfg.DeleteBatchSize,
		CacheControl:    cfg.CacheControl,
		PublicRead:      cfg.PublicRead,
	}, executor.WithLogger(logger), executor.WithMetrics(sm.metrics))

	return &components{scanner: sc, planner: pl, executor: ex}, nil
}

// Sync runs the pipeline. Configuration, scan cancellation and inventory
// failures are returned as errors; per-operation failures are reported in
// the summary only.
func (sm *Manager) Sync(ctx context.Context, roots []assettypes.Root, cfg *assettypes.SyncConfig) (*Result, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := sm.logger.With("run_id", runID)

	c, err := sm.build(roots, cfg, logger)
	if err != nil {
		return nil, err
	}

	if checker, ok := sm.store.(store.Checker); ok {
		if err := checker.Check(ctx); err != nil {
			return nil, err
		}
	}

	result := &Result{Summary: assettypes.Summary{RunID: runID, StartedAt: startTime, DryRun: cfg.DryRun}}
	summary := &result.Summary

	// Phase 1: scan
	timer := sm.metrics.StartPhase(metrics.PhaseScan)
	assets, stats, err := c.scanner.Scan(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("failed to scan local roots: %w", err)
	}
	timer.Stop()
	summary.Scanned = stats.Included
	summary.ScanErrors = stats.Errors
	logger.Info("scan finished",
		"files", stats.Files,
		"included", stats.Included,
		"excluded", stats.Excluded,
		"errors", stats.Errors,
		"size", humanize.IBytes(uint64(stats.Bytes)))

	// Phase 2: resolve duplicates
	timer = sm.metrics.StartPhase(metrics.PhaseResolve)
	resolved := dedup.Resolve(assets)
	timer.Stop()
	summary.DuplicateGroups = len(resolved.Groups)
	summary.DuplicatesExcluded = resolved.Excluded()
	summary.DuplicateBytes = resolved.WastedBytes()
	sm.metrics.DuplicatesExcluded(resolved.Excluded())
	for _, g := range resolved.Groups {
		logger.Debug("duplicate group",
			"digest", g.Digest,
			"canonical", g.Canonical.RelPath,
			"excluded", len(g.Excluded),
			"wasted", humanize.IBytes(uint64(g.WastedBytes())))
	}

	// Phase 3: remote inventory
	timer = sm.metrics.StartPhase(metrics.PhaseInventory)
	inv, err := inventory.NewLister(sm.store, logger, sm.metrics).List(ctx, cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}
	timer.Stop()
	summary.RemoteObjects = inv.Len()

	// Phase 4: plan
	timer = sm.metrics.StartPhase(metrics.PhasePlan)
	plan, err := c.planner.Plan(resolved.Assets(), inv, resolved.Groups)
	if err != nil {
		return nil, err
	}
	if err := planner.ValidatePlan(plan); err != nil {
		return nil, err
	}
	timer.Stop()
	result.Plan = plan
	summary.PlannedUploads = len(plan.Uploads)
	summary.PlannedDeletes = len(plan.Deletes)
	summary.Skipped = len(plan.Skips)

	planStats := planner.GetOperationStats(plan)
	logger.Info("plan ready",
		"uploads", planStats.Uploads,
		"upload_size", humanize.IBytes(uint64(planStats.BytesToUpload)),
		"deletes", planStats.Deletes,
		"skips", planStats.Skips,
		"dry_run", cfg.DryRun)

	if cfg.DryRun {
		summary.Duration = time.Since(startTime)
		return result, nil
	}

	// Phase 5: execute
	timer = sm.metrics.StartPhase(metrics.PhaseExecute)
	limits := c.executor.GetStats()
	logger.Debug("executing plan",
		"concurrency", limits.MaxConcurrency,
		"delete_batch_size", limits.DeleteBatchSize)
	execution, err := c.executor.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	timer.Stop()
	result.Execution = execution

	summary.Uploaded = execution.UploadResult.FilesUploaded()
	summary.UploadsFailed = len(plan.Uploads) - summary.Uploaded
	summary.Deleted = execution.DeleteResult.FilesDeleted()
	summary.DeletesFailed = len(plan.Deletes) - summary.Deleted
	summary.BytesTransferred = execution.UploadResult.BytesUploaded()
	summary.Failures = execution.Failures()
	summary.Duration = time.Since(startTime)

	sm.metrics.RunFinished(summary.Healthy(), time.Now())
	return result, nil
}
