// Package memstore provides an in-memory store.Store used by tests and by
// dry runs that plan against a captured inventory.
package memstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	syncerrors "github.com/input-output-hk/catalyst-forge-libs/assetsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/store"
)

// Object is a stored object with the metadata it was uploaded with.
type Object struct {
	Data         []byte
	ContentType  string
	CacheControl string
	PublicRead   bool
}

// Store is a concurrency-safe in-memory store.
type Store struct {
	mu      sync.Mutex
	objects map[string]Object

	// failures, keyed by operation, let tests inject errors
	listErr   error
	putErrs   map[string]error
	deleteErr map[int]error
	refuse    map[string]string

	puts        []string
	deleteCalls [][]string
}

var (
	_ store.Store     = (*Store)(nil)
	_ store.Describer = (*Store)(nil)
)

// New creates an empty Store.
func New() *Store {
	return &Store{
		objects:   make(map[string]Object),
		putErrs:   make(map[string]error),
		deleteErr: make(map[int]error),
		refuse:    make(map[string]string),
	}
}

// Seed stores data at key without recording a Put call.
func (s *Store) Seed(key string, data []byte) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: append([]byte(nil), data...)}
	return s
}

// SeedSize stores size zero bytes at key.
func (s *Store) SeedSize(key string, size int) *Store {
	return s.Seed(key, make([]byte, size))
}

// FailList makes every List call return err.
func (s *Store) FailList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

// FailPut makes Put for key return err.
func (s *Store) FailPut(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErrs[key] = err
}

// FailDeleteCall makes the n-th DeleteBatch call (zero-based) fail as a whole.
func (s *Store) FailDeleteCall(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr[n] = err
}

// RefuseDelete makes DeleteBatch report key as not deleted with code.
func (s *Store) RefuseDelete(key, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse[key] = code
}

// Bucket returns a fixed name for logs.
func (s *Store) Bucket() string {
	return "memory"
}

// Endpoint returns a pseudo endpoint for public URLs.
func (s *Store) Endpoint() string {
	return "memory://"
}

// List returns objects under prefix sorted by key.
func (s *Store) List(_ context.Context, prefix string) ([]assettypes.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, syncerrors.NewError("list", s.listErr).WithBucket("memory")
	}

	objects := make([]assettypes.RemoteObject, 0, len(s.objects))
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		sum := md5.Sum(obj.Data)
		objects = append(objects, assettypes.RemoteObject{
			Key:  key,
			Size: int64(len(obj.Data)),
			ETag: hex.EncodeToString(sum[:]),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Put reads the body fully and stores it.
func (s *Store) Put(_ context.Context, input *store.PutInput) error {
	s.mu.Lock()
	err := s.putErrs[input.Key]
	s.mu.Unlock()
	if err != nil {
		return syncerrors.NewObjectError("put", "memory", input.Key, err)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, input.Body)
	if err != nil {
		return syncerrors.NewObjectError("put", "memory", input.Key, err)
	}
	if n != input.Size {
		return syncerrors.NewObjectError("put", "memory", input.Key,
			fmt.Errorf("body length %d does not match declared size %d", n, input.Size))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[input.Key] = Object{
		Data:         buf.Bytes(),
		ContentType:  input.ContentType,
		CacheControl: input.CacheControl,
		PublicRead:   input.PublicRead,
	}
	s.puts = append(s.puts, input.Key)
	return nil
}

// DeleteBatch removes keys, honouring injected failures.
func (s *Store) DeleteBatch(_ context.Context, keys []string) ([]assettypes.DeleteError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := len(s.deleteCalls)
	s.deleteCalls = append(s.deleteCalls, append([]string(nil), keys...))

	if len(keys) > assettypes.MaxDeleteBatchSize {
		return nil, syncerrors.NewError("deleteBatch", syncerrors.ErrInvalidInput).WithBucket("memory")
	}
	if err := s.deleteErr[call]; err != nil {
		return nil, syncerrors.NewError("deleteBatch", err).WithBucket("memory")
	}

	var failed []assettypes.DeleteError
	for _, key := range keys {
		if code, ok := s.refuse[key]; ok {
			failed = append(failed, assettypes.DeleteError{Key: key, Code: code, Message: "refused"})
			continue
		}
		delete(s.objects, key)
	}
	return failed, nil
}

// Get returns the object stored at key.
func (s *Store) Get(key string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys returns all stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns the keys passed to successful Put calls, in call order.
func (s *Store) Puts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}

// DeleteCalls returns the key slices passed to each DeleteBatch call.
func (s *Store) DeleteCalls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	calls := make([][]string, len(s.deleteCalls))
	for i, c := range s.deleteCalls {
		calls[i] = append([]string(nil), c...)
	}
	return calls
}
