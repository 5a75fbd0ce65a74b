// Package validation provides centralized input validation logic.
// Bucket names, key prefixes and sync settings are validated before any
// remote call is made.
package validation

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
)

// ValidateBucketName validates that a bucket name is DNS-compliant.
// R2 and MinIO enforce the same rules as AWS S3.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithMessage("bucket name cannot be empty")
	}

	// Bucket names must be between 3 and 63 characters long
	if len(bucket) < 3 || len(bucket) > 63 {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name must be between 3 and 63 characters long")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char) {
			return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
				WithBucket(bucket).
				WithMessage("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	if first == '-' || first == '.' || last == '-' || last == '.' {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot start or end with a hyphen or dot")
	}

	if strings.Contains(bucket, "..") {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot contain two adjacent periods")
	}

	return nil
}

// ValidateObjectKey validates a remote object key.
func ValidateObjectKey(key string) error {
	if key == "" {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithMessage("object key cannot be empty")
	}
	return validateKeyShape("validateObjectKey", key)
}

// ValidateKeyPrefix validates the prefix prepended to every uploaded key.
// An empty prefix is valid.
func ValidateKeyPrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	if !strings.HasSuffix(prefix, "/") {
		return errors.NewError("validateKeyPrefix", errors.ErrInvalidConfig).
			WithKey(prefix).
			WithMessage("key prefix must end with a slash")
	}
	return validateKeyShape("validateKeyPrefix", prefix)
}

// ValidateRoots checks that at least one root is given, that paths are
// relative to the scan base and that no root equals or contains another.
func ValidateRoots(roots []assettypes.Root) error {
	if len(roots) == 0 {
		return errors.NewError("validateRoots", errors.ErrInvalidConfig).
			WithMessage("at least one root directory is required")
	}

	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r.Path) == "" {
			return errors.NewError("validateRoots", errors.ErrInvalidConfig).
				WithMessage("root path cannot be empty")
		}
		if r.Priority < 0 {
			return errors.NewError("validateRoots", errors.ErrInvalidConfig).
				WithKey(r.Path).
				WithMessage("root priority cannot be negative")
		}
		p := path.Clean(strings.ReplaceAll(r.Path, "\\", "/"))
		if strings.HasPrefix(p, "../") || p == ".." {
			return errors.NewError("validateRoots", errors.ErrInvalidConfig).
				WithKey(r.Path).
				WithMessage("root cannot escape the scan base")
		}
		for i, other := range cleaned {
			if p == other {
				return errors.NewError("validateRoots", errors.ErrInvalidConfig).
					WithKey(r.Path).
					WithMessage("root listed more than once")
			}
			if containsPath(other, p) || containsPath(p, other) {
				return errors.NewError("validateRoots", errors.ErrInvalidConfig).
					WithKey(r.Path).
					WithMessage(fmt.Sprintf("root overlaps root %q", roots[i].Path))
			}
		}
		cleaned = append(cleaned, p)
	}
	return nil
}

// containsPath reports whether dir is a strict ancestor of p. Both are cleaned.
func containsPath(dir, p string) bool {
	if dir == "." {
		return p != "."
	}
	return strings.HasPrefix(p, dir+"/")
}

// ValidateStripPrefixes rejects empty prefixes and prefixes without a trailing slash.
func ValidateStripPrefixes(prefixes []string) error {
	for _, p := range prefixes {
		if p == "" || !strings.HasSuffix(p, "/") {
			return errors.NewError("validateStripPrefixes", errors.ErrInvalidConfig).
				WithKey(p).
				WithMessage("strip prefix must be a non-empty directory path ending with a slash")
		}
	}
	return nil
}

// ValidateLimits checks the upload concurrency and delete batch size.
func ValidateLimits(concurrency, deleteBatchSize int) error {
	if concurrency < 1 {
		return errors.NewError("validateLimits", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("concurrency must be positive, got %d", concurrency))
	}
	if deleteBatchSize < 1 || deleteBatchSize > assettypes.MaxDeleteBatchSize {
		return errors.NewError("validateLimits", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("delete batch size must be between 1 and %d, got %d",
				assettypes.MaxDeleteBatchSize, deleteBatchSize))
	}
	return nil
}

// ValidateCacheControl rejects header values containing control characters.
func ValidateCacheControl(value string) error {
	if hasControlCharacters(value) {
		return errors.NewError("validateCacheControl", errors.ErrInvalidConfig).
			WithMessage("cache-control cannot contain control characters")
	}
	return nil
}

func validateKeyShape(op, key string) error {
	if hasPathTraversal(key) {
		return errors.NewError(op, errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("key cannot contain path traversal sequences")
	}

	// S3 supports keys up to 1024 bytes
	if len(key) > 1024 {
		return errors.NewError(op, errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("key cannot exceed 1024 characters")
	}

	if hasControlCharacters(key) {
		return errors.NewError(op, errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("key cannot contain control characters")
	}

	return nil
}

// isValidBucketChar checks if a character is valid in a bucket name
func isValidBucketChar(char rune) bool {
	return (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '.' || char == '-'
}

// hasPathTraversal checks for path traversal attempts in object keys
func hasPathTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}
	if strings.HasPrefix(key, "/") {
		return true
	}
	// Windows-style absolute paths
	if len(key) >= 3 && key[1] == ':' && (key[2] == '\\' || key[2] == '/') {
		return true
	}
	return false
}

// hasControlCharacters checks for control characters in the key
func hasControlCharacters(key string) bool {
	for _, char := range key {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
