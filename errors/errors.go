// Package errors provides error types and handling for asset sync operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a sync operation error with context about the operation that failed.
// It wraps the underlying store, filesystem or planning error with enough context
// to identify the object involved.
type Error struct {
	// Op is the operation that failed (e.g., "scan", "list", "upload", "deleteBatch")
	Op string

	// Bucket is the remote bucket name (if applicable)
	Bucket string

	// Key is the remote object key or local relative path (if applicable)
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("assetsync.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("assetsync.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("assetsync.%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("assetsync.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for sync failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrScan indicates a local file could not be read while scanning.
	// Scan errors are recovered: the file is skipped.
	ErrScan = errors.New("assetsync: scan failed")

	// ErrInventory indicates the remote listing failed. It is fatal to a run.
	ErrInventory = errors.New("assetsync: remote inventory failed")

	// ErrUpload indicates a single object upload failed
	ErrUpload = errors.New("assetsync: upload failed")

	// ErrDeleteBatch indicates a delete batch, or a key within it, failed
	ErrDeleteBatch = errors.New("assetsync: delete batch failed")

	// ErrInvalidConfig indicates missing or malformed configuration
	ErrInvalidConfig = errors.New("assetsync: invalid configuration")

	// ErrConflictingRules indicates rule configuration whose plan semantics are undefined
	ErrConflictingRules = errors.New("assetsync: conflicting rules")

	// ErrPlanConflict indicates a plan schedules the same key for upload and delete
	ErrPlanConflict = errors.New("assetsync: plan conflict")

	// ErrCancelled indicates an operation was never started because the run was aborted
	ErrCancelled = errors.New("assetsync: cancelled")

	// ErrBucketNotFound indicates that the target bucket does not exist
	ErrBucketNotFound = errors.New("assetsync: bucket not found")

	// ErrAccessDenied indicates that access to the bucket or object is denied
	ErrAccessDenied = errors.New("assetsync: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("assetsync: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("assetsync: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("assetsync: invalid object key")

	// ErrTooManyRequests indicates that the request rate is too high
	ErrTooManyRequests = errors.New("assetsync: too many requests")
)

// IsInventory checks if an error indicates a failed remote inventory.
func IsInventory(err error) bool {
	return errors.Is(err, ErrInventory)
}

// IsConfig checks if an error is a configuration or rule conflict error.
// Both are fatal before any remote call is made.
func IsConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrConflictingRules)
}

// IsCancelled checks if an error indicates the operation was skipped due to cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsBucketNotFound checks if an error indicates that a bucket was not found.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
