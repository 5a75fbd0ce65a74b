// Package pool provides reusable read buffers for streaming digests.
//
// Every scanned file is hashed through a fixed-size chunk buffer; pooling the
// chunks keeps allocation flat regardless of how many files a scan visits.
package pool

import (
	"sync"
)

const (
	// SmallBufferSize defines the size for small buffers (4KB)
	SmallBufferSize = 4 * 1024
	// ChunkSize defines the size of a digest read chunk (64KB)
	ChunkSize = 64 * 1024
)

// BufferPool manages reusable buffers of a fixed size.
type BufferPool struct {
	size int
	pool *sync.Pool
}

// NewBufferPool creates a pool handing out buffers of exactly size bytes.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get returns a full-length buffer from the pool.
// The caller is responsible for calling Put to return the buffer to the pool.
func (bp *BufferPool) Get() []byte {
	bufPtr := bp.pool.Get().(*[]byte)
	return (*bufPtr)[:bp.size]
}

// Put returns a buffer to the pool.
// Buffers of a different capacity are dropped.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	buf = buf[:bp.size]
	bp.pool.Put(&buf)
}

// Size returns the length of buffers handed out by the pool.
func (bp *BufferPool) Size() int {
	return bp.size
}

// Global pools for use throughout the module.
var (
	chunkPool = NewBufferPool(ChunkSize)
	smallPool = NewBufferPool(SmallBufferSize)
)

// GetChunk returns a digest chunk buffer from the global pool.
func GetChunk() []byte {
	return chunkPool.Get()
}

// PutChunk returns a digest chunk buffer to the global pool.
func PutChunk(buf []byte) {
	chunkPool.Put(buf)
}

// GetSmallBuffer returns a small buffer from the global pool.
func GetSmallBuffer() []byte {
	return smallPool.Get()
}

// PutSmallBuffer returns a small buffer to the global pool.
func PutSmallBuffer(buf []byte) {
	smallPool.Put(buf)
}
