// Package s3store implements the store contract on top of the AWS SDK v2 S3
// client. It works against AWS S3, Cloudflare R2 and other S3-compatible
// endpoints.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	syncerrors "github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
)

// listPageSize is the maximum page size ListObjectsV2 accepts.
const listPageSize = 1000

// Store is an S3-backed store.Store.
type Store struct {
	client   s3api.S3API
	bucket   string
	endpoint string
}

var (
	_ store.Store        = (*Store)(nil)
	_ store.Checker      = (*Store)(nil)
	_ store.PolicySetter = (*Store)(nil)
	_ store.Describer    = (*Store)(nil)
)

// New creates a Store from the client configuration.
// Static credentials are used when both keys are set; otherwise the default
// AWS credential chain applies.
func New(ctx context.Context, cfg *assettypes.ClientConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, syncerrors.NewError("s3store.new", syncerrors.ErrInvalidConfig).
			WithMessage("bucket cannot be empty")
	}

	var awsCfg aws.Config
	if cfg.CustomAWSConfig != nil {
		awsCfg = *cfg.CustomAWSConfig
	} else {
		loadOpts := []func(*config.LoadOptions) error{}
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}
		var err error
		awsCfg, err = config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, syncerrors.NewError("s3store.new", err)
		}
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = "auto"
	}
	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	httpClient := cfg.CustomHTTPClient
	if httpClient == nil && cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient != nil {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Endpoint), nil
}

// NewWithClient creates a Store with a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(client s3api.S3API, bucket, endpoint string) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Endpoint returns the configured endpoint URL, or an empty string for AWS defaults.
func (s *Store) Endpoint() string {
	return s.endpoint
}

// List pages through ListObjectsV2 until the listing is no longer truncated.
func (s *Store) List(ctx context.Context, prefix string) ([]assettypes.RemoteObject, error) {
	var objects []assettypes.RemoteObject
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			MaxKeys:           aws.Int32(listPageSize),
			ContinuationToken: continuationToken,
		}
		if prefix != "" {
			input.Prefix = aws.String(prefix)
		}

		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, syncerrors.NewError("list", convertAWSError(err)).WithBucket(s.bucket)
		}

		for _, obj := range output.Contents {
			objects = append(objects, assettypes.RemoteObject{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		if output.NextContinuationToken == nil {
			return nil, syncerrors.NewError("list", syncerrors.ErrInventory).
				WithBucket(s.bucket).
				WithMessage("truncated listing without continuation token")
		}
		continuationToken = output.NextContinuationToken
	}

	return objects, nil
}

// Put uploads a single object with the given metadata.
func (s *Store) Put(ctx context.Context, input *store.PutInput) error {
	putInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(input.Key),
		Body:          input.Body,
		ContentLength: aws.Int64(input.Size),
	}
	if input.ContentType != "" {
		putInput.ContentType = aws.String(input.ContentType)
	}
	if input.CacheControl != "" {
		putInput.CacheControl = aws.String(input.CacheControl)
	}
	if input.PublicRead {
		putInput.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, putInput); err != nil {
		return syncerrors.NewObjectError("put", s.bucket, input.Key, convertAWSError(err))
	}
	return nil
}

// DeleteBatch issues one DeleteObjects call for keys.
// Quiet mode is used so the response only carries failures.
func (s *Store) DeleteBatch(ctx context.Context, keys []string) ([]assettypes.DeleteError, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(keys) > assettypes.MaxDeleteBatchSize {
		return nil, syncerrors.NewError("deleteBatch", syncerrors.ErrInvalidInput).
			WithBucket(s.bucket).
			WithMessage(fmt.Sprintf("too many keys: %d exceeds %d per request", len(keys), assettypes.MaxDeleteBatchSize))
	}

	objects := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
	}

	output, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{
			Objects: objects,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return nil, syncerrors.NewError("deleteBatch", convertAWSError(err)).WithBucket(s.bucket)
	}

	if len(output.Errors) == 0 {
		return nil, nil
	}
	failed := make([]assettypes.DeleteError, 0, len(output.Errors))
	for _, e := range output.Errors {
		failed = append(failed, assettypes.DeleteError{
			Key:     aws.ToString(e.Key),
			Code:    aws.ToString(e.Code),
			Message: aws.ToString(e.Message),
		})
	}
	return failed, nil
}

// Check issues a HeadBucket request.
func (s *Store) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return syncerrors.NewError("check", convertAWSError(err)).WithBucket(s.bucket)
	}
	return nil
}

// SetPublicReadPolicy grants anonymous GetObject on keys under prefix.
func (s *Store) SetPublicReadPolicy(ctx context.Context, prefix string) error {
	policy, err := store.PublicReadPolicy(s.bucket, prefix)
	if err != nil {
		return syncerrors.NewError("setPolicy", err).WithBucket(s.bucket)
	}
	_, err = s.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(s.bucket),
		Policy: aws.String(policy),
	})
	if err != nil {
		return syncerrors.NewError("setPolicy", convertAWSError(err)).WithBucket(s.bucket)
	}
	return nil
}

// convertAWSError maps AWS API error codes onto sentinel errors while
// keeping the original error in the chain.
func convertAWSError(err error) error {
	if err == nil {
		return nil
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%w: %w", syncerrors.ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %w", syncerrors.ErrBucketNotFound, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", syncerrors.ErrAccessDenied, err)
		case "SlowDown", "Throttling", "ThrottlingException", "TooManyRequests":
			return fmt.Errorf("%w: %w", syncerrors.ErrTooManyRequests, err)
		}
	}

	return err
}
