// Package assettypes provides shared type definitions for the assetsync module.
package assettypes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// DigestAlgorithm names the hash used for content addressing.
type DigestAlgorithm string

// Supported digest algorithms
const (
	// DigestMD5 matches the ETag S3-compatible stores record for single-part uploads
	DigestMD5 DigestAlgorithm = "md5"

	// DigestSHA256 trades ETag comparability for collision resistance
	DigestSHA256 DigestAlgorithm = "sha256"
)

// Defaults applied when the corresponding option is not set.
const (
	DefaultConcurrency        = 10
	DefaultDeleteBatchSize    = 1000
	MaxDeleteBatchSize        = 1000
	DefaultCacheControl       = "public, max-age=31536000"
	DefaultSmallFileThreshold = 100 * 1024
	DefaultContentType        = "application/octet-stream"
)

// Root is a local directory to scan together with its priority rank.
// Lower rank means higher priority when duplicates are resolved.
type Root struct {
	// Path is the root directory, relative to the scan base
	Path string `json:"path" mapstructure:"path"`

	// Priority is the root's rank; 0 is the highest priority
	Priority int `json:"priority" mapstructure:"priority"`
}

// InclusionRule admits files with extension Ext whose size is at least MinSize.
// Ext is compared case-insensitively without the leading dot. "*" matches any extension.
type InclusionRule struct {
	Ext     string `json:"ext" mapstructure:"ext"`
	MinSize int64  `json:"min_size" mapstructure:"min_size"`
}

// DeletionRules marks remote objects as orphans.
type DeletionRules struct {
	// Prefixes are deprecated key prefixes; every key under them is deleted
	Prefixes []string `json:"prefixes" mapstructure:"prefixes"`

	// SmallFileThreshold deletes objects strictly smaller than this many bytes.
	// Zero disables the rule.
	SmallFileThreshold int64 `json:"small_file_threshold" mapstructure:"small_file_threshold"`

	// ProtectedExts are extensions exempt from the small-file rule
	ProtectedExts []string `json:"protected_exts" mapstructure:"protected_exts"`
}

// Asset is a local file admitted by an inclusion rule.
type Asset struct {
	// AbsPath is the path used to open the file on the scan filesystem
	AbsPath string `json:"abs_path"`

	// RelPath is the slash-separated path relative to the scan base
	RelPath string `json:"rel_path"`

	// Root is the root directory the asset was found under
	Root string `json:"root"`

	// Priority is the rank of Root
	Priority int `json:"priority"`

	// Size in bytes at scan time
	Size int64 `json:"size"`

	// Digest is the hex-encoded content hash computed at scan time
	Digest string `json:"digest"`

	// ContentType is the MIME type sent with the upload
	ContentType string `json:"content_type"`

	// Rule is the first inclusion rule that admitted the asset
	Rule InclusionRule `json:"rule"`
}

// DuplicateGroup is the set of assets sharing one digest.
type DuplicateGroup struct {
	Digest    string  `json:"digest"`
	Canonical Asset   `json:"canonical"`
	Excluded  []Asset `json:"excluded,omitempty"`
}

// WastedBytes is the size that would have been transferred again without deduplication.
func (g DuplicateGroup) WastedBytes() int64 {
	return g.Canonical.Size * int64(len(g.Excluded))
}

// RemoteObject is an entry in the remote store.
type RemoteObject struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// OperationType represents the type of sync operation.
type OperationType string

// Operation types produced by the planner
const (
	OperationUpload OperationType = "upload"
	OperationDelete OperationType = "delete"
	OperationSkip   OperationType = "skip"
)

// Skip and delete reasons recorded on operations.
const (
	ReasonMissing          = "missing"
	ReasonSizeChanged      = "size-changed"
	ReasonChecksumChanged  = "checksum-changed"
	ReasonUnchanged        = "unchanged"
	ReasonKeyCollision     = "key-collision"
	ReasonDeprecatedPrefix = "deprecated-prefix"
	ReasonSmallFile        = "small-file"
)

// Operation is a single planned action against a remote key.
type Operation struct {
	Type   OperationType `json:"type"`
	Key    string        `json:"key"`
	Asset  *Asset        `json:"asset,omitempty"`
	Size   int64         `json:"size"`
	Reason string        `json:"reason"`
}

// Plan is the output of planning.
// A key never appears in both Uploads and Deletes.
type Plan struct {
	Uploads []Operation `json:"uploads"`
	Deletes []Operation `json:"deletes"`
	Skips   []Operation `json:"skips,omitempty"`

	// Groups holds every duplicate group with more than one member
	Groups []DuplicateGroup `json:"duplicate_groups,omitempty"`
}

// IsEmpty reports whether the plan would mutate the remote store.
func (p *Plan) IsEmpty() bool {
	return len(p.Uploads) == 0 && len(p.Deletes) == 0
}

// UploadBytes returns the total size of all planned uploads.
func (p *Plan) UploadBytes() int64 {
	var total int64
	for _, op := range p.Uploads {
		total += op.Size
	}
	return total
}

// OperationResult is the outcome of one executed operation.
type OperationResult struct {
	Operation Operation
	Err       error
	Duration  time.Duration
}

// DeleteError represents an error that occurred deleting a specific key.
type DeleteError struct {
	// Key is the object key that failed to delete
	Key string

	// Code is the error code
	Code string

	// Message is the error message
	Message string
}

// Failure is a reported per-item failure.
type Failure struct {
	Op      string `json:"op"`
	Key     string `json:"key"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Summary is the machine-readable result of a run.
type Summary struct {
	// RunID identifies the run in logs and reports
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	DryRun    bool          `json:"dry_run"`

	Scanned            int   `json:"scanned"`
	ScanErrors         int   `json:"scan_errors"`
	DuplicateGroups    int   `json:"duplicate_groups"`
	DuplicatesExcluded int   `json:"duplicates_excluded"`
	DuplicateBytes     int64 `json:"duplicate_bytes"`
	RemoteObjects      int   `json:"remote_objects"`

	PlannedUploads int `json:"planned_uploads"`
	PlannedDeletes int `json:"planned_deletes"`
	Skipped        int `json:"skipped"`

	Uploaded         int   `json:"uploaded"`
	UploadsFailed    int   `json:"uploads_failed"`
	Deleted          int   `json:"deleted"`
	DeletesFailed    int   `json:"deletes_failed"`
	BytesTransferred int64 `json:"bytes_transferred"`

	Failures []Failure `json:"failures,omitempty"`
}

// Failed returns the number of failed operations.
func (s *Summary) Failed() int {
	return s.UploadsFailed + s.DeletesFailed
}

// Healthy reports whether the run finished without any failed operation.
func (s *Summary) Healthy() bool {
	return s.Failed() == 0
}

// Configuration types for functional options

// Store backends
const (
	BackendS3    = "s3"
	BackendMinIO = "minio"
)

// ClientConfig holds configuration for the remote store connection.
type ClientConfig struct {
	// Backend selects the store implementation, BackendS3 or BackendMinIO
	Backend string

	Bucket           string
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	MaxRetries       int
	Timeout          time.Duration
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
	Logger           *slog.Logger

	// Registerer receives the client's sync metrics; nil disables registration
	Registerer prometheus.Registerer
}

// SyncConfig holds configuration for a sync run.
type SyncConfig struct {
	// Base is the directory roots are resolved against
	Base string

	// Roots are scanned in priority order
	Roots []Root

	Filesystem      billy.Filesystem
	InclusionRules  []InclusionRule
	DeletionRules   DeletionRules
	StripPrefixes   []string
	KeyPrefix       string
	ExcludePatterns []string
	IgnoreFile      string
	Digest          DigestAlgorithm
	ChecksumCompare bool

	Concurrency     int
	DeleteBatchSize int
	CacheControl    string
	PublicRead      bool
	DryRun          bool
}

type (
	// Option is a functional option for configuring the Client.
	Option func(*ClientConfig)
	// SyncOption is a functional option for configuring a sync run.
	SyncOption func(*SyncConfig)
)
