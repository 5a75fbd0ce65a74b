package s3store

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/testutil"
)

func TestStore_ListPaginates(t *testing.T) {
	objects := testutil.GenerateObjects(2500, "assets/", 2048)
	calls := 0
	list := testutil.PagedListObjects(objects, 1000, &calls)

	var prefixes []string
	mock := &testutil.MockS3Client{
		ListObjectsV2Func: func(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			prefixes = append(prefixes, aws.ToString(input.Prefix))
			assert.Equal(t, int32(listPageSize), aws.ToInt32(input.MaxKeys))
			return list(input)
		},
	}

	st := NewWithClient(mock, "cdn", "")
	got, err := st.List(context.Background(), "assets/")
	require.NoError(t, err)

	assert.Len(t, got, 2500)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"assets/", "assets/", "assets/"}, prefixes)
	assert.Equal(t, "assets/object-0000.bin", got[0].Key)
	assert.Equal(t, int64(2048), got[0].Size)
	assert.NotContains(t, got[0].ETag, `"`)
}

func TestStore_ListEmptyPrefixOmitted(t *testing.T) {
	mock := &testutil.MockS3Client{
		ListObjectsV2Func: func(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			assert.Nil(t, input.Prefix)
			return &s3.ListObjectsV2Output{}, nil
		},
	}

	got, err := NewWithClient(mock, "cdn", "").List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_ListTruncatedWithoutToken(t *testing.T) {
	mock := &testutil.MockS3Client{
		ListObjectsV2Func: func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return &s3.ListObjectsV2Output{IsTruncated: aws.Bool(true)}, nil
		},
	}

	_, err := NewWithClient(mock, "cdn", "").List(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerrors.ErrInventory)
}

func TestStore_ListConvertsAPIErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"access denied", "AccessDenied", syncerrors.ErrAccessDenied},
		{"no such bucket", "NoSuchBucket", syncerrors.ErrBucketNotFound},
		{"throttled", "SlowDown", syncerrors.ErrTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockS3Client{
				ListObjectsV2Func: func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
					return nil, &smithy.GenericAPIError{Code: tt.code, Message: "nope"}
				},
			}

			_, err := NewWithClient(mock, "cdn", "").List(context.Background(), "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var apiErr smithy.APIError
			assert.True(t, errors.As(err, &apiErr), "original API error should stay in the chain")
		})
	}
}

func TestStore_Put(t *testing.T) {
	var captured *s3.PutObjectInput
	var body string
	mock := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			captured = input
			b, err := io.ReadAll(input.Body)
			require.NoError(t, err)
			body = string(b)
			return &s3.PutObjectOutput{}, nil
		},
	}

	err := NewWithClient(mock, "cdn", "").Put(context.Background(), &store.PutInput{
		Key:          "pdfs/guide.pdf",
		Body:         strings.NewReader("pdf-bytes"),
		Size:         9,
		ContentType:  "application/pdf",
		CacheControl: "public, max-age=31536000",
		PublicRead:   true,
	})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "cdn", aws.ToString(captured.Bucket))
	assert.Equal(t, "pdfs/guide.pdf", aws.ToString(captured.Key))
	assert.Equal(t, int64(9), aws.ToInt64(captured.ContentLength))
	assert.Equal(t, "application/pdf", aws.ToString(captured.ContentType))
	assert.Equal(t, "public, max-age=31536000", aws.ToString(captured.CacheControl))
	assert.Equal(t, types.ObjectCannedACLPublicRead, captured.ACL)
	assert.Equal(t, "pdf-bytes", body)
}

func TestStore_PutPrivate(t *testing.T) {
	mock := &testutil.MockS3Client{
		PutObjectFunc: func(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			assert.Empty(t, input.ACL)
			assert.Nil(t, input.CacheControl)
			return &s3.PutObjectOutput{}, nil
		},
	}

	err := NewWithClient(mock, "cdn", "").Put(context.Background(), &store.PutInput{
		Key:  "a.bin",
		Body: strings.NewReader("x"),
		Size: 1,
	})
	require.NoError(t, err)
}

func TestStore_PutError(t *testing.T) {
	mock := &testutil.MockS3Client{
		PutObjectFunc: func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "AccessDenied"}
		},
	}

	err := NewWithClient(mock, "cdn", "").Put(context.Background(), &store.PutInput{
		Key:  "a.bin",
		Body: strings.NewReader("x"),
		Size: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerrors.ErrAccessDenied)

	var opErr *syncerrors.Error
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "a.bin", opErr.Key)
	assert.Equal(t, "cdn", opErr.Bucket)
}

func TestStore_DeleteBatch(t *testing.T) {
	var captured *s3.DeleteObjectsInput
	mock := &testutil.MockS3Client{
		DeleteObjectsFunc: func(_ context.Context, input *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			captured = input
			return &s3.DeleteObjectsOutput{
				Errors: []types.Error{{
					Key:     aws.String("b"),
					Code:    aws.String("AccessDenied"),
					Message: aws.String("denied"),
				}},
			}, nil
		},
	}

	failed, err := NewWithClient(mock, "cdn", "").DeleteBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Len(t, captured.Delete.Objects, 3)
	assert.True(t, aws.ToBool(captured.Delete.Quiet))
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Key)
	assert.Equal(t, "AccessDenied", failed[0].Code)
}

func TestStore_DeleteBatchLimits(t *testing.T) {
	called := false
	mock := &testutil.MockS3Client{
		DeleteObjectsFunc: func(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			called = true
			return &s3.DeleteObjectsOutput{}, nil
		},
	}
	st := NewWithClient(mock, "cdn", "")

	failed, err := st.DeleteBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.False(t, called)

	keys := make([]string, 1001)
	for i := range keys {
		keys[i] = "k"
	}
	_, err = st.DeleteBatch(context.Background(), keys)
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerrors.ErrInvalidInput)
	assert.False(t, called)
}

func TestStore_DeleteBatchCallError(t *testing.T) {
	mock := &testutil.MockS3Client{
		DeleteObjectsFunc: func(context.Context, *s3.DeleteObjectsInput, ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
			return nil, errors.New("connection reset")
		},
	}

	_, err := NewWithClient(mock, "cdn", "").DeleteBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_Check(t *testing.T) {
	mock := &testutil.MockS3Client{
		HeadBucketFunc: func(_ context.Context, input *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
			assert.Equal(t, "cdn", aws.ToString(input.Bucket))
			return nil, &types.NoSuchBucket{}
		},
	}

	err := NewWithClient(mock, "cdn", "").Check(context.Background())
	require.Error(t, err)
	assert.True(t, syncerrors.IsBucketNotFound(err))
}

func TestStore_SetPublicReadPolicy(t *testing.T) {
	var policy string
	mock := &testutil.MockS3Client{
		PutBucketPolicyFunc: func(_ context.Context, input *s3.PutBucketPolicyInput, _ ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error) {
			policy = aws.ToString(input.Policy)
			return &s3.PutBucketPolicyOutput{}, nil
		},
	}

	require.NoError(t, NewWithClient(mock, "cdn", "").SetPublicReadPolicy(context.Background(), ""))
	assert.Contains(t, policy, `"Resource":"arn:aws:s3:::cdn/*"`)
}

func TestStore_Describe(t *testing.T) {
	st := NewWithClient(&testutil.MockS3Client{}, "cdn", "https://acct.r2.cloudflarestorage.com/")
	assert.Equal(t, "cdn", st.Bucket())
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", st.Endpoint())
}
