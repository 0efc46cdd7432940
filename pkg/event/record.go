package event

import (
	"errors"
	"net"
	"sync/atomic"
)

// Record carries the state of one asynchronous operation from the place it was
// issued to the handler that consumes its completion.
//
// A record has exactly one owner at a time. It is borrowed from a Pool, filled
// by whoever performs the operation, and then either re-armed for another
// operation, handed to a session, or released back to the pool.
type Record struct {
	// Op is the operation that last completed on this record.
	Op Op

	// Conn is the connection the operation produced or ran on.
	Conn net.Conn

	// Err is the completion status; nil means success.
	Err error

	// N is the number of bytes transferred by receive or send operations.
	N int

	// Buffer backs receive operations. Its length is fixed by the pool.
	Buffer []byte

	// UserToken identifies the owner of the record once it has left the
	// accept path (the admitted session).
	UserToken any

	pool  *Pool
	inUse atomic.Bool
}

// PrepareAccept clears any state left by a previous accept so the record can
// be issued again.
func (r *Record) PrepareAccept() {
	r.Op = OpAccept
	r.Conn = nil
	r.Err = nil
	r.N = 0
	r.UserToken = nil
}

// Reset clears every field except the buffer.
func (r *Record) Reset() {
	r.Op = OpNone
	r.Conn = nil
	r.Err = nil
	r.N = 0
	r.UserToken = nil
}

// Aborted reports whether the operation completed because its endpoint closed.
func (r *Record) Aborted() bool {
	return r.Err != nil && errors.Is(r.Err, ErrOperationAborted)
}

// Release returns the record to its pool. Releasing a pooled record that is
// not checked out panics. Records built outside a pool are only cleared.
func (r *Record) Release() {
	if r.pool == nil {
		r.Reset()
		return
	}
	r.pool.Put(r)
}
