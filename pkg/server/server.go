// Package server implements the accept and session-admission engine of a
// completion-driven TCP server.
//
// The engine keeps a fixed number of accepts outstanding on the listening
// socket. Every completed accept is turned into a session, published to the
// accepted subscribers (any of which may veto it) and, if admitted,
// registered and started. One replacement accept is issued for every
// completion, so the standing count never drifts.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/internal/ratelimiter"
	"github.com/marmos91/dittonet/pkg/event"
	"github.com/marmos91/dittonet/pkg/metrics"
	"github.com/marmos91/dittonet/pkg/registry"
	"github.com/marmos91/dittonet/pkg/session"
	"github.com/marmos91/dittonet/pkg/socket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Protocol is the transport served by Server.
	Protocol = "tcp"

	tracerName = "github.com/marmos91/dittonet/pkg/server"
)

// Server is the accept engine.
//
// Lifecycle:
//  1. New validates the configuration
//  2. OnAccepted / OnError subscribe to events (any time)
//  3. Start binds, creates the session registry and arms the standing accepts
//  4. Stop closes the listener, disposes the registry and drains completions
//
// A stopped server can be started again; it gets a fresh registry.
//
// Thread safety:
// All methods are safe for concurrent use.
type Server struct {
	config   Config
	base     *socket.Base
	standing int

	factory        session.Factory
	handler        session.DataHandler
	openEndpoint   socket.EndpointFactory
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	throttle       *ratelimiter.RateLimiter

	stats   *metrics.Stats
	sink    metrics.ServerMetrics
	metrics metrics.ServerMetrics

	subscribersMu sync.Mutex
	subscribers   atomic.Pointer[[]AcceptedHandler]

	sessionsMu sync.Mutex
	sessions   atomic.Pointer[registry.Registry]

	activeMu sync.Mutex

	run atomic.Pointer[runState]
}

// runState is everything that lives from one Start to the matching Stop.
type runState struct {
	pool       *event.Pool
	dispatcher *socket.Dispatcher
	endpoint   socket.ListenEndpoint
	factory    session.Factory
	sessions   *registry.Registry
	cancelLog  context.CancelFunc

	// failures counts consecutive transient accept errors.
	failures atomic.Int64

	mu       sync.Mutex
	stopped  bool
	stopping chan struct{}
	retries  sync.WaitGroup
}

// New creates a stopped server.
func New(config Config, opts ...Option) (*Server, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	s := &Server{
		config:       config,
		openEndpoint: socket.OpenEndpoint,
		stats:        metrics.NewStats(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics = metrics.Tee(s.stats, s.sink)

	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	s.tracer = s.tracerProvider.Tracer(tracerName)

	if config.MaxAcceptRate > 0 {
		s.throttle = ratelimiter.New(config.MaxAcceptRate, config.AcceptBurst)
	}

	cpus := logicalCPUs()
	s.standing = standingAccepts(config.LowLatency, cpus)
	logger.Debug("Accept engine: low_latency=%v logical_cpus=%d standing_accepts=%d",
		config.LowLatency, cpus, s.standing)

	s.subscribers.Store(&[]AcceptedHandler{})
	s.base = socket.NewBase("dittonet", socket.Hooks{
		OnStart:   s.onStart,
		OnDispose: s.onDispose,
	})

	return s, nil
}

// Start binds the listening socket and arms the standing accepts.
func (s *Server) Start(ctx context.Context) error {
	return s.base.Start(ctx)
}

// Stop shuts the server down. Pending accepts are aborted, every registered
// session is closed and queued completions are drained. Stop on a
// stopped server is a no-op.
//
// If ctx expires first, Stop returns ctx.Err() while shutdown continues in
// the background.
func (s *Server) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan error, 1)
	go func() {
		done <- s.base.Stop()
	}()

	select {
	case err := <-done:
		if errors.Is(err, socket.ErrNotRunning) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Warn("Server shutdown did not finish in time: %v", ctx.Err())
		return ctx.Err()
	}
}

// Serve starts the server and blocks until ctx is cancelled, then stops it
// within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutdown signal received: %v", ctx.Err())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// Running reports whether the server is started.
func (s *Server) Running() bool {
	return s.base.Running()
}

// OnError subscribes h to errors raised while accepting and admitting.
func (s *Server) OnError(h socket.ErrorHandler) {
	s.base.OnError(h)
}

// Protocol returns "tcp".
func (s *Server) Protocol() string {
	return Protocol
}

// Addr returns the bound address, or nil while stopped.
func (s *Server) Addr() net.Addr {
	rs := s.run.Load()
	if rs == nil {
		return nil
	}
	return rs.endpoint.Addr()
}

// Port returns the bound port, which differs from the configured one when
// the configuration asked for an ephemeral port.
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Port
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.config
}

// MaxInactivity returns the idle timeout applied to sessions.
func (s *Server) MaxInactivity() time.Duration {
	return s.config.MaxInactivityDuration()
}

// StandingAccepts returns the number of accepts kept outstanding.
func (s *Server) StandingAccepts() int {
	return s.standing
}

// PendingAccepts returns the accepts currently waiting for a connection.
func (s *Server) PendingAccepts() int64 {
	rs := s.run.Load()
	if rs == nil {
		return 0
	}
	return rs.endpoint.Pending()
}

// OutstandingRecords returns the completion records currently checked out.
func (s *Server) OutstandingRecords() int64 {
	rs := s.run.Load()
	if rs == nil {
		return 0
	}
	return rs.pool.Outstanding()
}

// Stats returns the in-memory statistics.
func (s *Server) Stats() *metrics.Stats {
	return s.stats
}

// Sessions returns the session registry. After a shutdown disposed the
// previous registry, a fresh one is created on first use.
func (s *Server) Sessions() *registry.Registry {
	if reg := s.sessions.Load(); reg != nil {
		return reg
	}

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	if reg := s.sessions.Load(); reg != nil {
		return reg
	}
	reg := registry.New()
	s.sessions.Store(reg)
	return reg
}

func (s *Server) onStart(ctx context.Context) error {
	rs := &runState{
		pool:     event.NewPool(s.config.ReceiveBufferSize),
		stopping: make(chan struct{}),
	}
	rs.dispatcher = socket.NewDispatcher(s.config.CompletionWorkers, func(rec *event.Record) {
		s.handleCompletion(rs, rec)
	})

	endpoint, err := s.openEndpoint(ctx, s.config.ListenAddress(), s.config.Backlog, rs.dispatcher)
	if err != nil {
		rs.dispatcher.Close()
		return err
	}
	rs.endpoint = endpoint

	rs.factory = s.factory
	if rs.factory == nil {
		rs.factory = session.NewFactory(session.Options{
			MaxInactivity: s.MaxInactivity(),
			Handler:       s.handler,
			Completions:   rs.dispatcher.Post,
		})
	}

	rs.sessions = s.Sessions()
	rs.dispatcher.Start()
	s.run.Store(rs)

	for i := 0; i < s.standing; i++ {
		s.startAccept(rs, rs.pool.Get())
	}

	if s.config.MetricsLogInterval > 0 {
		logCtx, cancel := context.WithCancel(context.Background())
		rs.cancelLog = cancel
		go s.logMetrics(logCtx)
	}

	logger.Info("DittoNet server listening on %s", endpoint.Addr())
	logger.Debug("Server config: standing_accepts=%d workers=%d backlog=%d max_inactivity=%ds keep_alive=%v",
		s.standing, s.config.CompletionWorkers, s.config.Backlog, s.config.MaxInactivity, s.config.KeepAlivePeriod)
	return nil
}

func (s *Server) onDispose() {
	rs := s.run.Swap(nil)
	if rs == nil {
		return
	}

	if rs.cancelLog != nil {
		rs.cancelLog()
	}

	// Outstanding accepts complete as aborted and are not re-armed.
	if err := rs.endpoint.Close(); err != nil {
		logger.Debug("Error closing listener: %v", err)
	}

	rs.mu.Lock()
	rs.stopped = true
	close(rs.stopping)
	rs.mu.Unlock()
	rs.retries.Wait()

	// Sessions are closed before the drain so that handlers blocked on a
	// session write are released. Admissions still queued find the registry
	// closed and drop their connection.
	s.sessionsMu.Lock()
	s.sessions.CompareAndSwap(rs.sessions, nil)
	s.sessionsMu.Unlock()

	logger.Info("Server shutdown: closing %d session(s)", rs.sessions.Count())
	rs.sessions.Close()

	rs.dispatcher.Close()

	s.activeMu.Lock()
	s.metrics.SetActiveSessions(0)
	s.activeMu.Unlock()
}

// publishActive stores the registry size in the active-sessions gauge. The
// read and the store happen under one lock, so the last store always follows
// the last registry change.
func (s *Server) publishActive(reg *registry.Registry) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.metrics.SetActiveSessions(reg.Count())
}

func (s *Server) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	sampler := s.stats.NewSampler()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := 0
			if reg := s.sessions.Load(); reg != nil {
				active = reg.Count()
			}
			snap := sampler.Sample()
			logger.Info("Server metrics: sessions=%d accepts=%d (%.1f/s) receives=%d (%.1f/s) bytes=%d rejected=%d accept_errors=%d",
				active, snap.Accepts, snap.AcceptRate, snap.Receives, snap.ReceiveRate,
				snap.BytesReceived, snap.Rejected, snap.AcceptErrors)
		}
	}
}
