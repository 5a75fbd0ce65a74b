// Package testutil provides test helper functions.
package testutil

import (
	"crypto/md5"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// StringPtr returns a pointer to the given string.
func StringPtr(s string) *string {
	return aws.String(s)
}

// Int64Ptr returns a pointer to the given int64.
func Int64Ptr(i int64) *int64 {
	return aws.Int64(i)
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool {
	return aws.Bool(b)
}

// CalculateETag calculates the quoted single-part ETag S3 returns for data.
func CalculateETag(data []byte) string {
	h := md5.Sum(data)
	return fmt.Sprintf(`"%x"`, h)
}

// CreateTestObject creates a test S3 object structure for ListObjectsV2 responses.
func CreateTestObject(key string, size int64) types.Object {
	lastModified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return types.Object{
		Key:          StringPtr(key),
		Size:         Int64Ptr(size),
		LastModified: &lastModified,
		ETag:         StringPtr(fmt.Sprintf(`"%x"`, md5.Sum([]byte(key)))),
		StorageClass: types.ObjectStorageClassStandard,
	}
}

// GenerateObjects returns count objects named <prefix>object-NNNN.bin of the given size.
func GenerateObjects(count int, prefix string, size int64) []types.Object {
	objects := make([]types.Object, count)
	for i := 0; i < count; i++ {
		objects[i] = CreateTestObject(fmt.Sprintf("%sobject-%04d.bin", prefix, i), size)
	}
	return objects
}

// PagedListObjects returns a ListObjectsV2Func that serves objects in pages of
// pageSize, using the page index as continuation token.
func PagedListObjects(
	objects []types.Object,
	pageSize int,
	calls *int,
) func(*s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
	return func(input *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
		if calls != nil {
			*calls++
		}
		start := 0
		if input.ContinuationToken != nil {
			if _, err := fmt.Sscanf(*input.ContinuationToken, "page-%d", &start); err != nil {
				return nil, err
			}
		}
		end := start + pageSize
		if end > len(objects) {
			end = len(objects)
		}
		output := &s3.ListObjectsV2Output{
			Contents:    objects[start:end],
			IsTruncated: BoolPtr(end < len(objects)),
		}
		if end < len(objects) {
			output.NextContinuationToken = StringPtr(fmt.Sprintf("page-%d", end))
		}
		return output, nil
	}
}
