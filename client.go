package assetsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store/miniostore"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store/s3store"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/sync/inventory"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/validation"
)

// Client syncs local asset trees into one bucket.
// It is safe for concurrent use; each Sync call runs its own pipeline.
type Client struct {
	// store is the remote object store backend
	store store.Store

	// logger receives structured progress and failure records
	logger *slog.Logger

	// metrics is nil when no registerer was configured
	metrics *metrics.Recorder
}

// New creates a client for the configured bucket.
//
// Example:
//
//	client, err := assetsync.New(ctx,
//	    assetsync.WithBucket("site-assets"),
//	    assetsync.WithEndpoint("https://<account>.r2.cloudflarestorage.com"),
//	    assetsync.WithCredentials(accessKey, secretKey),
//	)
func New(ctx context.Context, opts ...assettypes.Option) (*Client, error) {
	cfg := &assettypes.ClientConfig{
		Backend:    assettypes.BackendS3,
		MaxRetries: 3, // Default retry count
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := validation.ValidateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}

	var (
		s   store.Store
		err error
	)
	switch cfg.Backend {
	case assettypes.BackendS3, "":
		s, err = s3store.New(ctx, cfg)
	case assettypes.BackendMinIO:
		s, err = miniostore.New(cfg)
	default:
		return nil, errors.NewError("client initialization", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, errors.NewError("client initialization", err).WithBucket(cfg.Bucket)
	}

	return newClient(s, cfg), nil
}

// NewWithStore creates a client around an existing store.
// This is primarily used for testing with the in-memory store.
func NewWithStore(s store.Store, opts ...assettypes.Option) *Client {
	cfg := &assettypes.ClientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return newClient(s, cfg)
}

func newClient(s store.Store, cfg *assettypes.ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{store: s, logger: logger}
	if cfg.Registerer != nil {
		c.metrics = metrics.New(cfg.Registerer)
	}
	return c
}

// Bucket returns the bucket name, or "" if the store does not report one.
func (c *Client) Bucket() string {
	if d, ok := c.store.(store.Describer); ok {
		return d.Bucket()
	}
	return ""
}

// Endpoint returns the store endpoint, or "" for the provider default.
func (c *Client) Endpoint() string {
	if d, ok := c.store.(store.Describer); ok {
		return d.Endpoint()
	}
	return ""
}

// Check verifies the bucket is reachable with the configured credentials.
// Stores without a connectivity check always succeed.
func (c *Client) Check(ctx context.Context) error {
	if checker, ok := c.store.(store.Checker); ok {
		return checker.Check(ctx)
	}
	return nil
}

// Inventory lists every object under prefix, sorted by key.
func (c *Client) Inventory(ctx context.Context, prefix string) ([]assettypes.RemoteObject, error) {
	if err := validation.ValidateKeyPrefix(prefix); err != nil {
		return nil, err
	}
	inv, err := inventory.NewLister(c.store, c.logger, c.metrics).List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return inv.Objects, nil
}

// SetPublicAccess applies a bucket policy granting anonymous read access to
// keys under prefix.
func (c *Client) SetPublicAccess(ctx context.Context, prefix string) error {
	setter, ok := c.store.(store.PolicySetter)
	if !ok {
		return errors.NewError("setPublicAccess", errors.ErrInvalidInput).
			WithBucket(c.Bucket()).
			WithMessage("store does not support bucket policies")
	}
	if err := setter.SetPublicReadPolicy(ctx, prefix); err != nil {
		return err
	}
	c.logger.Info("public read policy applied", "bucket", c.Bucket(), "prefix", prefix)
	return nil
}
