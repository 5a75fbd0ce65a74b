// Package testutil provides test utilities and mocks for the assetsync module.
// This package is internal and should only be used for testing within the module.
package testutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/s3api"
)

// MockS3Client is a mock implementation of the S3API interface for testing.
// It allows customization of each S3 operation through function fields.
type MockS3Client struct {
	PutObjectFunc       func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjectsFunc   func(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2Func   func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucketFunc      func(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutBucketPolicyFunc func(context.Context, *s3.PutBucketPolicyInput, ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
}

// PutObject mocks the S3 PutObject operation.
func (m *MockS3Client) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	return &s3.PutObjectOutput{}, nil
}

// DeleteObjects mocks the S3 DeleteObjects operation.
func (m *MockS3Client) DeleteObjects(
	ctx context.Context,
	params *s3.DeleteObjectsInput,
	optFns ...func(*s3.Options),
) (*s3.DeleteObjectsOutput, error) {
	if m.DeleteObjectsFunc != nil {
		return m.DeleteObjectsFunc(ctx, params, optFns...)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

// ListObjectsV2 mocks the S3 ListObjectsV2 operation.
func (m *MockS3Client) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	optFns ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	if m.ListObjectsV2Func != nil {
		return m.ListObjectsV2Func(ctx, params, optFns...)
	}
	return &s3.ListObjectsV2Output{}, nil
}

// HeadBucket mocks the S3 HeadBucket operation.
func (m *MockS3Client) HeadBucket(
	ctx context.Context,
	params *s3.HeadBucketInput,
	optFns ...func(*s3.Options),
) (*s3.HeadBucketOutput, error) {
	if m.HeadBucketFunc != nil {
		return m.HeadBucketFunc(ctx, params, optFns...)
	}
	return &s3.HeadBucketOutput{}, nil
}

// PutBucketPolicy mocks the S3 PutBucketPolicy operation.
func (m *MockS3Client) PutBucketPolicy(
	ctx context.Context,
	params *s3.PutBucketPolicyInput,
	optFns ...func(*s3.Options),
) (*s3.PutBucketPolicyOutput, error) {
	if m.PutBucketPolicyFunc != nil {
		return m.PutBucketPolicyFunc(ctx, params, optFns...)
	}
	return &s3.PutBucketPolicyOutput{}, nil
}

// Ensure MockS3Client implements S3API interface
var _ s3api.S3API = (*MockS3Client)(nil)
