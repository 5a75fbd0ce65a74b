// Package store defines the narrow remote object store contract the sync
// pipeline depends on. Backends live in the s3store, miniostore and memstore
// subpackages.
package store

import (
	"context"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
)

// Store is the remote object store contract.
type Store interface {
	// List returns every object whose key starts with prefix.
	// Pagination is handled by the implementation.
	List(ctx context.Context, prefix string) ([]assettypes.RemoteObject, error)

	// Put uploads a single object.
	Put(ctx context.Context, input *PutInput) error

	// DeleteBatch deletes up to MaxDeleteBatchSize keys in a single call.
	// A returned error means the whole call failed; otherwise the slice holds
	// the keys the store refused to delete.
	DeleteBatch(ctx context.Context, keys []string) ([]assettypes.DeleteError, error)
}

// PutInput describes an object upload.
type PutInput struct {
	Key          string
	Body         io.Reader
	Size         int64
	ContentType  string
	CacheControl string
	PublicRead   bool
}

// Checker is implemented by stores that can verify connectivity before a run.
type Checker interface {
	Check(ctx context.Context) error
}

// PolicySetter is implemented by stores that can grant anonymous read access
// to keys under a prefix.
type PolicySetter interface {
	SetPublicReadPolicy(ctx context.Context, prefix string) error
}

// Describer reports where a store points, for logs and public URLs.
type Describer interface {
	Bucket() string
	Endpoint() string
}
