package errors

import "errors"

// ErrorCode classifies a failure for machine-readable run reports.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// CodeScan indicates a local file was skipped while scanning.
	CodeScan ErrorCode = "SCAN_FAILED"

	// CodeInventory indicates the remote listing failed.
	CodeInventory ErrorCode = "INVENTORY_FAILED"

	// CodeUpload indicates an object upload failed.
	CodeUpload ErrorCode = "UPLOAD_FAILED"

	// CodeDelete indicates a key could not be deleted.
	CodeDelete ErrorCode = "DELETE_FAILED"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeConflict indicates conflicting rules or a conflicting plan.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeNotFound indicates the bucket does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeRateLimit indicates the store throttled the request.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// CodeCancelled indicates the operation was not started because the run was aborted.
	CodeCancelled ErrorCode = "CANCELLED"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// codeOrder is checked in sequence, so more specific causes win over the
// operation-level sentinel they are usually wrapped in.
var codeOrder = []struct {
	err  error
	code ErrorCode
}{
	{ErrCancelled, CodeCancelled},
	{ErrAccessDenied, CodeForbidden},
	{ErrBucketNotFound, CodeNotFound},
	{ErrTooManyRequests, CodeRateLimit},
	{ErrInvalidConfig, CodeInvalidConfig},
	{ErrConflictingRules, CodeConflict},
	{ErrPlanConflict, CodeConflict},
	{ErrInventory, CodeInventory},
	{ErrScan, CodeScan},
	{ErrUpload, CodeUpload},
	{ErrDeleteBatch, CodeDelete},
}

// CodeOf returns the ErrorCode that best describes err.
// A nil error yields an empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range codeOrder {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}
