package assetsync

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
)

// WithBackend selects the store implementation: assettypes.BackendS3
// (default, also used for R2) or assettypes.BackendMinIO.
func WithBackend(backend string) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.Backend = backend
	}
}

// WithBucket sets the target bucket. Required.
func WithBucket(bucket string) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.Bucket = bucket
	}
}

// WithRegion sets the signing region.
// R2 accepts "auto", which is also used when no region can be resolved.
func WithRegion(region string) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom endpoint URL for R2, MinIO or LocalStack.
func WithEndpoint(endpoint string) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithCredentials sets static access keys.
// Without them the default AWS credential chain applies.
func WithCredentials(accessKeyID, secretAccessKey string) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithMaxRetries sets the maximum number of retry attempts for failed requests.
// Default is 3.
func WithMaxRetries(maxRetries int) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the HTTP client timeout for individual requests.
func WithTimeout(timeout time.Duration) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithForcePathStyle forces path-style bucket addressing.
// Required for MinIO and LocalStack.
func WithForcePathStyle(forcePathStyle bool) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithAWSConfig provides a fully resolved AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient sets the HTTP client used for store requests.
func WithCustomHTTPClient(client *http.Client) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the structured logger. Library output is discarded by default.
func WithLogger(logger *slog.Logger) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.Logger = logger
	}
}

// WithMetrics registers the sync collectors with reg.
func WithMetrics(reg prometheus.Registerer) assettypes.Option {
	return func(c *assettypes.ClientConfig) {
		c.Registerer = reg
	}
}

// Sync options

// WithRoots sets the directories to scan. Lower Priority wins duplicate resolution.
func WithRoots(roots ...assettypes.Root) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.Roots = roots
	}
}

// WithBase sets the directory roots are resolved against. Default is ".".
// Ignored when WithFilesystem is used.
func WithBase(base string) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.Base = base
	}
}

// WithFilesystem scans and uploads from filesystem instead of the OS tree at Base.
func WithFilesystem(filesystem billy.Filesystem) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.Filesystem = filesystem
	}
}

// WithInclusionRules replaces the default inclusion rules.
// A file is admitted by the first rule matching its extension with Size >= MinSize.
func WithInclusionRules(rules ...assettypes.InclusionRule) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.InclusionRules = rules
	}
}

// WithDeletionRules replaces the default deletion rules.
func WithDeletionRules(rules assettypes.DeletionRules) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.DeletionRules = rules
	}
}

// WithStripPrefixes sets path prefixes removed from relative paths when
// deriving keys. The first matching prefix is stripped.
func WithStripPrefixes(prefixes ...string) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.StripPrefixes = prefixes
	}
}

// WithKeyPrefix places every key, and the inventory, under prefix.
// A non-empty prefix must end with "/".
func WithKeyPrefix(prefix string) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.KeyPrefix = prefix
	}
}

// WithExcludes sets doublestar patterns for paths that are never scanned,
// e.g. "**/pdfjs/**".
func WithExcludes(patterns ...string) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.ExcludePatterns = patterns
	}
}

// WithIgnoreFile reads additional gitignore-style excludes from name under the base.
func WithIgnoreFile(name string) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.IgnoreFile = name
	}
}

// WithDigest selects the content hash. Default is MD5.
func WithDigest(algorithm assettypes.DigestAlgorithm) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.Digest = algorithm
	}
}

// WithChecksumCompare also uploads when the remote ETag differs from the
// local MD5 digest. Only single-part ETags are compared.
func WithChecksumCompare(enabled bool) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.ChecksumCompare = enabled
	}
}

// WithConcurrency sets the upload pool size. Default is 10.
func WithConcurrency(concurrency int) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithDeleteBatchSize sets the number of keys per delete request, 1 to 1000.
func WithDeleteBatchSize(size int) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.DeleteBatchSize = size
	}
}

// WithCacheControl sets the Cache-Control header sent with every upload.
func WithCacheControl(value string) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.CacheControl = value
	}
}

// WithPublicRead marks uploads as publicly readable. Default is true.
func WithPublicRead(public bool) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.PublicRead = public
	}
}

// WithDryRun plans without mutating the bucket.
func WithDryRun(dryRun bool) assettypes.SyncOption {
	return func(c *assettypes.SyncConfig) {
		c.DryRun = dryRun
	}
}
