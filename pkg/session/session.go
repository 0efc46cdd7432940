// Package session implements the per-connection state owned by the server
// once a connection has been admitted: the receive loop, idle timeout,
// receive/close hooks and outbound writes.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/pkg/event"
)

// ErrClosed is returned by Send on a closed session.
var ErrClosed = errors.New("session: closed")

// DataHandler consumes bytes received on a session. data is only valid for
// the duration of the call.
type DataHandler interface {
	HandleData(s *Session, data []byte)
}

// DataHandlerFunc adapts a function to DataHandler.
type DataHandlerFunc func(s *Session, data []byte)

func (f DataHandlerFunc) HandleData(s *Session, data []byte) {
	f(s, data)
}

// ReceiveHook observes every non-empty receive.
type ReceiveHook func(s *Session, n int)

// CloseHook runs once when the session closes.
type CloseHook func(s *Session)

// Options configure sessions created by New or a Factory.
type Options struct {
	// MaxInactivity closes the session when nothing is received for this
	// long. Zero disables the timeout.
	MaxInactivity time.Duration

	// Handler receives inbound data. Nil discards it.
	Handler DataHandler

	// Completions, when set, routes receive completions through a shared
	// completer (the server's dispatcher) instead of handling them on the
	// session's own goroutine. A false return falls back to inline handling.
	Completions func(rec *event.Record) bool
}

// Session is one accepted connection.
type Session struct {
	id      atomic.Int64
	traceID uuid.UUID
	conn    net.Conn
	created time.Time
	opts    Options

	remote                atomic.Pointer[net.Addr]
	disconnectOnEmptyData atomic.Bool

	hooksMu      sync.Mutex
	receiveHooks []ReceiveHook
	closeHooks   []CloseHook

	started   atomic.Bool
	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
	next      chan bool

	writeMu sync.Mutex
}

// New wraps conn in a session. The session does nothing until Start.
func New(conn net.Conn, opts Options) *Session {
	return &Session{
		traceID: uuid.New(),
		conn:    conn,
		created: time.Now(),
		opts:    opts,
		done:    make(chan struct{}),
		next:    make(chan bool, 1),
	}
}

// ID returns the registry id, or 0 while unregistered.
func (s *Session) ID() int64 {
	return s.id.Load()
}

// SetID is called by the registry on registration.
func (s *Session) SetID(id int64) {
	s.id.Store(id)
}

// TraceID returns the random identifier used to correlate log lines.
func (s *Session) TraceID() uuid.UUID {
	return s.traceID
}

// Conn returns the underlying connection.
func (s *Session) Conn() net.Conn {
	return s.conn
}

// Created returns when the session was created.
func (s *Session) Created() time.Time {
	return s.created
}

// SetRemote records the peer address carried by an accept completion.
func (s *Session) SetRemote(rec *event.Record) {
	if rec == nil || rec.Conn == nil {
		return
	}
	addr := rec.Conn.RemoteAddr()
	s.remote.Store(&addr)
}

// RemoteAddr returns the peer address set by SetRemote, falling back to the
// connection's own view.
func (s *Session) RemoteAddr() net.Addr {
	if addr := s.remote.Load(); addr != nil {
		return *addr
	}
	if s.conn != nil {
		return s.conn.RemoteAddr()
	}
	return nil
}

// SetDisconnectOnEmptyData makes an orderly shutdown by the peer close the
// session.
func (s *Session) SetDisconnectOnEmptyData(v bool) {
	s.disconnectOnEmptyData.Store(v)
}

func (s *Session) DisconnectOnEmptyData() bool {
	return s.disconnectOnEmptyData.Load()
}

// OnReceive subscribes h to receive events. Subscribe before Start.
func (s *Session) OnReceive(h ReceiveHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.receiveHooks = append(s.receiveHooks, h)
}

// OnClose subscribes h to the close event. Subscribing after the session
// closed runs h immediately.
func (s *Session) OnClose(h CloseHook) {
	s.hooksMu.Lock()
	if !s.closed.Load() {
		s.closeHooks = append(s.closeHooks, h)
		s.hooksMu.Unlock()
		return
	}
	s.hooksMu.Unlock()
	h(s)
}

// Start takes ownership of rec and begins receiving into its buffer. The
// record is released when the receive loop ends. Start may be called once.
func (s *Session) Start(rec *event.Record) {
	if !s.started.CompareAndSwap(false, true) {
		panic("session: started twice")
	}

	rec.UserToken = s
	go s.receiveLoop(rec)
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Send writes p to the peer.
func (s *Session) Send(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("session %d send: %w", s.ID(), err)
	}
	return n, nil
}

// Close closes the connection and fires the close hooks once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.hooksMu.Lock()
		s.closed.Store(true)
		hooks := s.closeHooks
		s.closeHooks = nil
		s.hooksMu.Unlock()

		if s.conn != nil {
			err = s.conn.Close()
		}
		close(s.done)

		logger.Debug("Session %d (%s): closed", s.ID(), s.traceID)
		for _, h := range hooks {
			h(s)
		}
	})
	return err
}

func (s *Session) receiveLoop(rec *event.Record) {
	defer rec.Release()

	for {
		s.receive(rec)

		if s.opts.Completions == nil || !s.opts.Completions(rec) {
			s.HandleCompletion(rec)
		}

		if !<-s.next {
			return
		}
	}
}

func (s *Session) receive(rec *event.Record) {
	if s.opts.MaxInactivity > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.MaxInactivity))
	}

	n, err := s.conn.Read(rec.Buffer)
	rec.Op = event.OpReceive
	rec.N = n
	rec.Err = err
}

// HandleCompletion processes a receive completion produced by the session's
// own loop and tells the loop whether to continue.
func (s *Session) HandleCompletion(rec *event.Record) {
	if rec.Op != event.OpReceive {
		logger.Debug("Session %d: ignoring %s completion", s.ID(), rec.Op)
		return
	}

	s.next <- s.processReceive(rec)
}

func (s *Session) processReceive(rec *event.Record) bool {
	if rec.N > 0 {
		s.fireReceive(rec.N)
		if s.opts.Handler != nil {
			s.opts.Handler.HandleData(s, rec.Buffer[:rec.N])
		}
	}

	switch {
	case rec.Err == nil && rec.N == 0:
		if s.DisconnectOnEmptyData() {
			_ = s.Close()
			return false
		}
	case rec.Err != nil:
		s.logReceiveError(rec.Err)
		_ = s.Close()
		return false
	}

	return !s.closed.Load()
}

func (s *Session) fireReceive(n int) {
	s.hooksMu.Lock()
	hooks := s.receiveHooks
	s.hooksMu.Unlock()

	for _, h := range hooks {
		h(s, n)
	}
}

func (s *Session) logReceiveError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("Session %d: peer %s closed the connection", s.ID(), s.RemoteAddr())
	case errors.Is(err, os.ErrDeadlineExceeded):
		logger.Debug("Session %d: idle for %v, closing", s.ID(), s.opts.MaxInactivity)
	case errors.Is(err, net.ErrClosed) || s.closed.Load():
		// closed locally
	default:
		logger.Debug("Session %d: receive error: %v", s.ID(), err)
	}
}
