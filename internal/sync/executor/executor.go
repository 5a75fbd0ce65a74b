package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/planner"
)

// Config holds the upload headers and concurrency limits.
type Config struct {
	Concurrency     int
	DeleteBatchSize int
	CacheControl    string
	PublicRead      bool
}

// Executor handles the execution of sync operations.
type Executor struct {
	store      store.Store
	filesystem billy.Filesystem
	cfg        Config
	bucket     string
	logger     *slog.Logger
	metrics    *metrics.Recorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Executor) {
		e.metrics = r
	}
}

// NewExecutor creates an executor that reads upload bodies from filesystem.
func NewExecutor(s store.Store, filesystem billy.Filesystem, cfg Config, opts ...Option) *Executor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = assettypes.DefaultConcurrency
	}
	if cfg.DeleteBatchSize <= 0 || cfg.DeleteBatchSize > assettypes.MaxDeleteBatchSize {
		cfg.DeleteBatchSize = assettypes.DefaultDeleteBatchSize
	}

	e := &Executor{
		store:      s,
		filesystem: filesystem,
		cfg:        cfg,
		logger:     slog.New(slog.DiscardHandler),
	}
	if d, ok := s.(store.Describer); ok {
		e.bucket = d.Bucket()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UploadResult contains the result of upload operations.
type UploadResult struct {
	// filesUploaded is the number of files successfully uploaded (internal counter)
	filesUploaded int64

	// bytesUploaded is the total bytes uploaded (internal counter)
	bytesUploaded int64

	// Results holds one entry per upload operation, in plan order
	Results []assettypes.OperationResult

	// Duration is how long the upload operations took
	Duration time.Duration
}

// FilesUploaded returns the number of files uploaded (safe for concurrent access)
func (r *UploadResult) FilesUploaded() int {
	return int(atomic.LoadInt64(&r.filesUploaded))
}

// BytesUploaded returns the number of bytes uploaded (safe for concurrent access)
func (r *UploadResult) BytesUploaded() int64 {
	return atomic.LoadInt64(&r.bytesUploaded)
}

// DeleteResult contains the result of delete operations.
type DeleteResult struct {
	// filesDeleted is the number of keys successfully deleted (internal counter)
	filesDeleted int64

	// Results holds one entry per delete operation, in plan order
	Results []assettypes.OperationResult

	// Batches is the number of DeleteBatch calls made
	Batches int

	// FailedBatches is the number of calls that failed as a whole
	FailedBatches int

	// Duration is how long the delete operations took
	Duration time.Duration
}

// FilesDeleted returns the number of keys deleted (safe for concurrent access)
func (r *DeleteResult) FilesDeleted() int {
	return int(atomic.LoadInt64(&r.filesDeleted))
}

// ExecutionResult contains the combined results of upload and delete operations.
type ExecutionResult struct {
	// UploadResult contains upload operation results
	UploadResult UploadResult

	// DeleteResult contains delete operation results
	DeleteResult DeleteResult

	// Duration is how long all operations took
	Duration time.Duration
}

// Failures returns every failed operation in plan order, uploads first.
func (r *ExecutionResult) Failures() []assettypes.Failure {
	var failures []assettypes.Failure
	for _, results := range [][]assettypes.OperationResult{r.UploadResult.Results, r.DeleteResult.Results} {
		for _, res := range results {
			if res.Err == nil {
				continue
			}
			failures = append(failures, assettypes.Failure{
				Op:      string(res.Operation.Type),
				Key:     res.Operation.Key,
				Code:    string(errors.CodeOf(res.Err)),
				Message: res.Err.Error(),
			})
		}
	}
	return failures
}

// Execute validates plan and runs its uploads, then its deletes.
// Per-operation failures are reported in the result, never returned.
func (e *Executor) Execute(ctx context.Context, plan *assettypes.Plan) (*ExecutionResult, error) {
	if err := planner.ValidatePlan(plan); err != nil {
		return nil, err
	}

	startTime := time.Now()
	result := &ExecutionResult{}
	result.UploadResult = *e.ExecuteUploads(ctx, plan.Uploads)
	result.DeleteResult = *e.ExecuteDeletes(ctx, plan.Deletes)
	result.Duration = time.Since(startTime)

	e.logger.Info("execution finished",
		"uploaded", result.UploadResult.FilesUploaded(),
		"deleted", result.DeleteResult.FilesDeleted(),
		"failed", len(result.Failures()),
		"transferred", humanize.IBytes(uint64(result.UploadResult.BytesUploaded())),
		"duration", result.Duration)
	return result, nil
}

// ExecuteUploads runs uploads with at most Concurrency in flight. A failed
// upload never cancels the others. Once ctx is cancelled no further upload
// starts; uploads already running finish on a detached context.
func (e *Executor) ExecuteUploads(ctx context.Context, operations []assettypes.Operation) *UploadResult {
	startTime := time.Now()
	result := &UploadResult{Results: make([]assettypes.OperationResult, len(operations))}

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Concurrency)

	for i := range operations {
		op := operations[i]
		if ctx.Err() != nil {
			result.Results[i] = e.cancelled(ctx, op)
			continue
		}

		g.Go(func() error {
			// the slot may have been granted after cancellation
			if ctx.Err() != nil {
				result.Results[i] = e.cancelled(ctx, op)
				return nil
			}
			result.Results[i] = e.upload(context.WithoutCancel(ctx), op, result)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(startTime)
	return result
}

// upload uploads a single file to the store.
func (e *Executor) upload(ctx context.Context, op assettypes.Operation, result *UploadResult) assettypes.OperationResult {
	start := time.Now()
	res := assettypes.OperationResult{Operation: op}

	err := e.put(ctx, op)
	res.Duration = time.Since(start)

	if err != nil {
		res.Err = err
		e.metrics.Upload(metrics.ResultFailure, op.Size, res.Duration)
		e.logger.Warn("upload failed", "key", op.Key, "error", err)
		return res
	}

	atomic.AddInt64(&result.filesUploaded, 1)
	atomic.AddInt64(&result.bytesUploaded, op.Size)
	e.metrics.Upload(metrics.ResultSuccess, op.Size, res.Duration)
	e.logger.Debug("uploaded", "key", op.Key, "size", humanize.IBytes(uint64(op.Size)), "reason", op.Reason)
	return res
}

func (e *Executor) put(ctx context.Context, op assettypes.Operation) error {
	if op.Asset == nil {
		return errors.NewObjectError("upload", e.bucket, op.Key, errors.ErrUpload).
			WithMessage("operation has no local asset")
	}

	file, err := e.filesystem.Open(op.Asset.AbsPath)
	if err != nil {
		return errors.NewObjectError("upload", e.bucket, op.Key, fmt.Errorf("%w: %w", errors.ErrUpload, err)).
			WithMessage("failed to open file")
	}
	defer func() { _ = file.Close() }()

	contentType := op.Asset.ContentType
	if contentType == "" {
		contentType = assettypes.DefaultContentType
	}

	err = e.store.Put(ctx, &store.PutInput{
		Key:          op.Key,
		Body:         file,
		Size:         op.Asset.Size,
		ContentType:  contentType,
		CacheControl: e.cfg.CacheControl,
		PublicRead:   e.cfg.PublicRead,
	})
	if err != nil {
		return errors.NewObjectError("upload", e.bucket, op.Key, fmt.Errorf("%w: %w", errors.ErrUpload, err))
	}
	return nil
}

// ExecuteDeletes deletes keys in chunks of at most DeleteBatchSize, one
// DeleteBatch call per chunk. A failed chunk marks its keys failed and the
// next chunk is still attempted.
func (e *Executor) ExecuteDeletes(ctx context.Context, operations []assettypes.Operation) *DeleteResult {
	startTime := time.Now()
	result := &DeleteResult{Results: make([]assettypes.OperationResult, len(operations))}

	for i := 0; i < len(operations); i += e.cfg.DeleteBatchSize {
		end := min(i+e.cfg.DeleteBatchSize, len(operations))

		if ctx.Err() != nil {
			for j := i; j < len(operations); j++ {
				result.Results[j] = e.cancelled(ctx, operations[j])
			}
			break
		}

		e.executeDeleteBatch(context.WithoutCancel(ctx), operations[i:end], result.Results[i:end], result)
	}

	result.Duration = time.Since(startTime)
	return result
}

// executeDeleteBatch executes a single batch of delete operations.
func (e *Executor) executeDeleteBatch(
	ctx context.Context,
	operations []assettypes.Operation,
	results []assettypes.OperationResult,
	result *DeleteResult,
) {
	keys := make([]string, len(operations))
	for i, op := range operations {
		keys[i] = op.Key
	}

	start := time.Now()
	refused, err := e.store.DeleteBatch(ctx, keys)
	elapsed := time.Since(start)
	result.Batches++

	if err != nil {
		result.FailedBatches++
		e.metrics.DeleteBatch(metrics.ResultFailure)
		e.metrics.Deletes(metrics.ResultFailure, len(keys))
		e.logger.Warn("delete batch failed", "keys", len(keys), "first", keys[0], "error", err)

		batchErr := errors.NewError("deleteBatch", fmt.Errorf("%w: %w", errors.ErrDeleteBatch, err)).
			WithBucket(e.bucket)
		for i, op := range operations {
			results[i] = assettypes.OperationResult{Operation: op, Err: batchErr, Duration: elapsed}
		}
		return
	}
	e.metrics.DeleteBatch(metrics.ResultSuccess)

	refusedByKey := make(map[string]assettypes.DeleteError, len(refused))
	for _, de := range refused {
		refusedByKey[de.Key] = de
	}

	deleted := 0
	for i, op := range operations {
		results[i] = assettypes.OperationResult{Operation: op, Duration: elapsed}
		if de, ok := refusedByKey[op.Key]; ok {
			results[i].Err = errors.NewObjectError("delete", e.bucket, op.Key,
				fmt.Errorf("%w: %s: %s", errors.ErrDeleteBatch, de.Code, de.Message))
			e.logger.Warn("delete refused", "key", op.Key, "code", de.Code, "message", de.Message)
			continue
		}
		deleted++
	}

	atomic.AddInt64(&result.filesDeleted, int64(deleted))
	e.metrics.Deletes(metrics.ResultSuccess, deleted)
	e.metrics.Deletes(metrics.ResultFailure, len(operations)-deleted)
	e.logger.Debug("delete batch finished", "deleted", deleted, "refused", len(operations)-deleted)
}

func (e *Executor) cancelled(ctx context.Context, op assettypes.Operation) assettypes.OperationResult {
	if op.Type == assettypes.OperationUpload {
		e.metrics.Upload(metrics.ResultCancelled, op.Size, 0)
	} else {
		e.metrics.Deletes(metrics.ResultCancelled, 1)
	}
	return assettypes.OperationResult{
		Operation: op,
		Err: errors.NewObjectError(string(op.Type), e.bucket, op.Key,
			fmt.Errorf("%w: %w", errors.ErrCancelled, context.Cause(ctx))),
	}
}

// Stats contains statistics about the executor's configuration.
type Stats struct {
	// MaxConcurrency is the maximum allowed concurrent uploads
	MaxConcurrency int

	// DeleteBatchSize is the maximum number of keys per delete call
	DeleteBatchSize int
}

// GetStats returns the executor's effective limits.
func (e *Executor) GetStats() Stats {
	return Stats{
		MaxConcurrency:  e.cfg.Concurrency,
		DeleteBatchSize: e.cfg.DeleteBatchSize,
	}
}
