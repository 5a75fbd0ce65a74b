// Package miniostore implements the store contract with the MinIO client.
// It serves self-hosted MinIO deployments and any S3-compatible endpoint
// where the MinIO SDK is preferred over the AWS SDK.
package miniostore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	syncerrors "github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
)

// MinioAPI is the subset of *minio.Client used by the store.
type MinioAPI interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PutObject(
		ctx context.Context,
		bucketName, objectName string,
		reader io.Reader,
		objectSize int64,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	RemoveObjects(
		ctx context.Context,
		bucketName string,
		objectsCh <-chan minio.ObjectInfo,
		opts minio.RemoveObjectsOptions,
	) <-chan minio.RemoveObjectError
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	SetBucketPolicy(ctx context.Context, bucketName, policy string) error
}

// Store is a MinIO-backed store.Store.
type Store struct {
	client   MinioAPI
	bucket   string
	endpoint string
}

var (
	_ MinioAPI           = (*minio.Client)(nil)
	_ store.Store        = (*Store)(nil)
	_ store.Checker      = (*Store)(nil)
	_ store.PolicySetter = (*Store)(nil)
	_ store.Describer    = (*Store)(nil)
)

// New creates a Store from the client configuration.
// Endpoint must be a URL; its scheme selects TLS.
func New(cfg *assettypes.ClientConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, syncerrors.NewError("miniostore.new", syncerrors.ErrInvalidConfig).
			WithMessage("bucket cannot be empty")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" {
		return nil, syncerrors.NewError("miniostore.new", syncerrors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("invalid endpoint %q", cfg.Endpoint))
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: u.Scheme == "https",
		Region: cfg.Region,
	}
	if cfg.ForcePathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	if cfg.CustomHTTPClient != nil {
		opts.Transport = cfg.CustomHTTPClient.Transport
	}

	client, err := minio.New(u.Host, opts)
	if err != nil {
		return nil, syncerrors.NewError("miniostore.new", err)
	}
	return NewWithClient(client, cfg.Bucket, cfg.Endpoint), nil
}

// NewWithClient creates a Store with a custom MinioAPI implementation.
func NewWithClient(client MinioAPI, bucket, endpoint string) *Store {
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

// Endpoint returns the endpoint URL.
func (s *Store) Endpoint() string {
	return s.endpoint
}

// List drains a recursive listing; the MinIO client pages internally.
func (s *Store) List(ctx context.Context, prefix string) ([]assettypes.RemoteObject, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []assettypes.RemoteObject
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, syncerrors.NewError("list", convertMinioError(info.Err)).WithBucket(s.bucket)
		}
		objects = append(objects, assettypes.RemoteObject{
			Key:          info.Key,
			Size:         info.Size,
			ETag:         strings.Trim(info.ETag, `"`),
			LastModified: info.LastModified,
		})
	}
	return objects, nil
}

// Put uploads a single object. Public visibility is requested with the
// x-amz-acl header; stores without ACL support rely on the bucket policy instead.
func (s *Store) Put(ctx context.Context, input *store.PutInput) error {
	opts := minio.PutObjectOptions{
		ContentType:  input.ContentType,
		CacheControl: input.CacheControl,
	}
	if input.PublicRead {
		opts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}

	if _, err := s.client.PutObject(ctx, s.bucket, input.Key, input.Body, input.Size, opts); err != nil {
		return syncerrors.NewObjectError("put", s.bucket, input.Key, convertMinioError(err))
	}
	return nil
}

// DeleteBatch removes keys in one multi-object delete.
func (s *Store) DeleteBatch(ctx context.Context, keys []string) ([]assettypes.DeleteError, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if len(keys) > assettypes.MaxDeleteBatchSize {
		return nil, syncerrors.NewError("deleteBatch", syncerrors.ErrInvalidInput).
			WithBucket(s.bucket).
			WithMessage(fmt.Sprintf("too many keys: %d exceeds %d per request", len(keys), assettypes.MaxDeleteBatchSize))
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	var (
		failed   []assettypes.DeleteError
		errs     []error
		perKey   bool
		messages = make(map[string]struct{})
	)
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.ObjectName == "" {
			// Errors without an object name fail the request as a whole.
			return nil, syncerrors.NewError("deleteBatch", convertMinioError(rerr.Err)).WithBucket(s.bucket)
		}
		resp := minio.ToErrorResponse(rerr.Err)
		message := ""
		if rerr.Err != nil {
			message = rerr.Err.Error()
		}
		if resp.Key != "" {
			perKey = true
		}
		messages[message] = struct{}{}
		errs = append(errs, rerr.Err)
		failed = append(failed, assettypes.DeleteError{
			Key:     rerr.ObjectName,
			Code:    resp.Code,
			Message: message,
		})
	}

	// minio-go fans a failed request out into one error per object. Those
	// carry no key in the response and share a single message.
	if len(failed) == len(keys) && !perKey && len(messages) == 1 {
		return nil, syncerrors.NewError("deleteBatch", convertMinioError(errs[0])).WithBucket(s.bucket)
	}
	return failed, nil
}

// Check verifies the bucket exists.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return syncerrors.NewError("check", convertMinioError(err)).WithBucket(s.bucket)
	}
	if !ok {
		return syncerrors.NewError("check", syncerrors.ErrBucketNotFound).WithBucket(s.bucket)
	}
	return nil
}

// SetPublicReadPolicy grants anonymous GetObject on keys under prefix.
func (s *Store) SetPublicReadPolicy(ctx context.Context, prefix string) error {
	policy, err := store.PublicReadPolicy(s.bucket, prefix)
	if err != nil {
		return syncerrors.NewError("setPolicy", err).WithBucket(s.bucket)
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
		return syncerrors.NewError("setPolicy", convertMinioError(err)).WithBucket(s.bucket)
	}
	return nil
}

func convertMinioError(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %w", syncerrors.ErrBucketNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %w", syncerrors.ErrAccessDenied, err)
	case "SlowDown", "SlowDownRead", "SlowDownWrite":
		return fmt.Errorf("%w: %w", syncerrors.ErrTooManyRequests, err)
	}
	return err
}
