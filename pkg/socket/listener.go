package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittonet/pkg/event"
)

// ListenEndpoint is a listening socket that completes accepts asynchronously.
type ListenEndpoint interface {
	// AcceptAsync issues one accept on rec. It returns true when the
	// completion will be posted later, and false when rec was completed
	// synchronously and must be processed by the caller.
	AcceptAsync(rec *event.Record) bool

	// Addr returns the bound address.
	Addr() net.Addr

	// Pending returns the number of accepts issued but not yet completed.
	Pending() int64

	// Close stops listening. Outstanding accepts complete with
	// event.ErrOperationAborted.
	Close() error
}

// EndpointFactory opens a ListenEndpoint that posts completions to c.
type EndpointFactory func(ctx context.Context, address string, backlog int, c Completer) (ListenEndpoint, error)

// Listener is the TCP ListenEndpoint backed by a net.Listener.
//
// Each AcceptAsync runs one blocking Accept on its own goroutine and posts
// the filled record to the completer. AcceptAsync may be called concurrently;
// only Close excludes it.
type Listener struct {
	ln          net.Listener
	completions Completer

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	pending atomic.Int64
}

// Listen binds address ("host:port") and starts listening with the requested
// backlog. A backlog of 0 requests the largest queue the OS will grant.
func Listen(ctx context.Context, address string, backlog int, c Completer) (*Listener, error) {
	if c == nil {
		return nil, errors.New("socket: nil completer")
	}

	ln, err := listen(ctx, address, backlog)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return &Listener{ln: ln, completions: c}, nil
}

// OpenEndpoint is the default EndpointFactory.
func OpenEndpoint(ctx context.Context, address string, backlog int, c Completer) (ListenEndpoint, error) {
	return Listen(ctx, address, backlog, c)
}

// AcceptAsync issues one accept. After Close it completes rec synchronously
// with event.ErrOperationAborted and returns false.
func (l *Listener) AcceptAsync(rec *event.Record) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec.Op = event.OpAccept
	if l.closed {
		rec.Err = event.ErrOperationAborted
		return false
	}

	l.pending.Add(1)
	l.wg.Add(1)
	go l.accept(rec)
	return true
}

func (l *Listener) accept(rec *event.Record) {
	defer l.wg.Done()

	conn, err := l.ln.Accept()
	l.pending.Add(-1)

	rec.Op = event.OpAccept
	rec.Conn = conn
	if err != nil && errors.Is(err, net.ErrClosed) {
		err = fmt.Errorf("accept: %w", event.ErrOperationAborted)
	}
	rec.Err = err

	if !l.completions.Post(rec) {
		if conn != nil {
			_ = conn.Close()
		}
		rec.Release()
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Pending returns the number of accepts in flight.
func (l *Listener) Pending() int64 {
	return l.pending.Load()
}

// Close stops listening and waits until every outstanding accept has posted
// its completion. Calling Close twice is a no-op.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	err := l.ln.Close()
	l.mu.Unlock()

	l.wg.Wait()
	return err
}
