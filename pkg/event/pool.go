package event

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the receive buffer attached to each pooled record.
const DefaultBufferSize = 4096

// Pool recycles Records and tracks how many are checked out.
type Pool struct {
	bufferSize  int
	pool        sync.Pool
	outstanding atomic.Int64
}

// NewPool creates a pool whose records carry a buffer of bufferSize bytes.
// A non-positive size selects DefaultBufferSize.
func NewPool(bufferSize int) *Pool {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	p := &Pool{bufferSize: bufferSize}
	p.pool.New = func() any {
		return &Record{
			Buffer: make([]byte, bufferSize),
			pool:   p,
		}
	}
	return p
}

// Get borrows a cleared record.
func (p *Pool) Get() *Record {
	r := p.pool.Get().(*Record)
	if !r.inUse.CompareAndSwap(false, true) {
		panic("event: pooled record already in use")
	}
	r.Reset()
	p.outstanding.Add(1)
	return r
}

// Put returns r to the pool. It panics if r was already released or belongs
// to another pool.
func (p *Pool) Put(r *Record) {
	if r.pool != p {
		panic("event: record returned to foreign pool")
	}
	if !r.inUse.CompareAndSwap(true, false) {
		panic("event: double release of record")
	}
	r.Reset()
	p.outstanding.Add(-1)
	p.pool.Put(r)
}

// Outstanding returns the number of records currently checked out.
func (p *Pool) Outstanding() int64 {
	return p.outstanding.Load()
}

// BufferSize returns the size of each record's buffer.
func (p *Pool) BufferSize() int {
	return p.bufferSize
}
