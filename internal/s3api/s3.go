// Package s3api defines interfaces for S3 operations to enable testing and mocking.
package s3api

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API defines the subset of S3 operations used by the S3 store.
// This interface allows for mocking in tests.
type S3API interface {
	// PutObject uploads an object
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)

	// DeleteObjects deletes up to 1000 objects in one request
	DeleteObjects(
		ctx context.Context,
		params *s3.DeleteObjectsInput,
		optFns ...func(*s3.Options),
	) (*s3.DeleteObjectsOutput, error)

	// ListObjectsV2 lists one page of objects in a bucket
	ListObjectsV2(
		ctx context.Context,
		params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)

	// HeadBucket checks that the bucket exists and is reachable
	HeadBucket(
		ctx context.Context,
		params *s3.HeadBucketInput,
		optFns ...func(*s3.Options),
	) (*s3.HeadBucketOutput, error)

	// PutBucketPolicy replaces the bucket policy document
	PutBucketPolicy(
		ctx context.Context,
		params *s3.PutBucketPolicyInput,
		optFns ...func(*s3.Options),
	) (*s3.PutBucketPolicyOutput, error)
}

// Ensure that the AWS SDK S3 client implements our interface
var _ S3API = (*s3.Client)(nil)
