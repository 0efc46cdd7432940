// Package socket provides the generic pieces of a completion-driven TCP
// server: the listening endpoint, the completion dispatcher, TCP keep-alive
// tuning and the Base lifecycle that concrete servers embed.
package socket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/pkg/event"
)

var (
	// ErrAlreadyRunning is returned by Start on a running server.
	ErrAlreadyRunning = errors.New("socket: server already running")

	// ErrNotRunning is returned by Stop on a server that is not running.
	ErrNotRunning = errors.New("socket: server not running")
)

// Hooks are the lifecycle callbacks a concrete server plugs into Base.
type Hooks struct {
	// OnStart runs inside Start. Returning an error aborts the start.
	OnStart func(ctx context.Context) error

	// OnDispose runs inside Stop after the server is marked stopped.
	OnDispose func()
}

// ErrorHandler receives errors raised while processing completions.
type ErrorHandler func(op event.Op, err error)

// CompletionHandler is implemented by record owners (sessions) that consume
// their own completions.
type CompletionHandler interface {
	HandleCompletion(rec *event.Record)
}

// Base implements the lifecycle and error plumbing shared by servers.
type Base struct {
	name  string
	hooks Hooks

	lifecycle sync.Mutex
	running   atomic.Bool

	handlersMu sync.Mutex
	handlers   atomic.Pointer[[]ErrorHandler]
}

// NewBase creates a Base identified by name in log lines.
func NewBase(name string, hooks Hooks) *Base {
	b := &Base{name: name, hooks: hooks}
	b.handlers.Store(&[]ErrorHandler{})
	return b
}

// Name returns the name given to NewBase.
func (b *Base) Name() string {
	return b.name
}

// Start runs the OnStart hook and marks the server running.
func (b *Base) Start(ctx context.Context) error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.running.Load() {
		return ErrAlreadyRunning
	}

	if b.hooks.OnStart != nil {
		if err := b.hooks.OnStart(ctx); err != nil {
			return fmt.Errorf("%s start: %w", b.name, err)
		}
	}

	b.running.Store(true)
	logger.Debug("%s: started", b.name)
	return nil
}

// Stop marks the server stopped and runs the OnDispose hook.
func (b *Base) Stop() error {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if !b.running.Load() {
		return ErrNotRunning
	}
	b.running.Store(false)

	if b.hooks.OnDispose != nil {
		b.hooks.OnDispose()
	}

	logger.Debug("%s: stopped", b.name)
	return nil
}

// Running reports whether Start succeeded and Stop has not been called since.
func (b *Base) Running() bool {
	return b.running.Load()
}

// OnError subscribes h to the error event. Handlers run in subscription
// order on the goroutine that raised the error.
func (b *Base) OnError(h ErrorHandler) {
	if h == nil {
		return
	}

	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	old := *b.handlers.Load()
	next := make([]ErrorHandler, len(old), len(old)+1)
	copy(next, old)
	next = append(next, h)
	b.handlers.Store(&next)
}

// ReportError raises the error event.
func (b *Base) ReportError(op event.Op, err error) {
	if err == nil {
		return
	}

	logger.Debug("%s: %s error: %v", b.name, op, err)
	for _, h := range *b.handlers.Load() {
		b.invokeErrorHandler(h, op, err)
	}
}

func (b *Base) invokeErrorHandler(h ErrorHandler, op event.Op, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s: error handler panic: %v", b.name, r)
		}
	}()
	h(op, err)
}

// ProcessWithRearm runs process on rec and then always calls rearm, even
// when process fails or panics. Failures are reported through the error
// event and never propagate to the caller.
func (b *Base) ProcessWithRearm(rec *event.Record, rearm func(), process func(*event.Record) error) {
	op := rec.Op

	defer rearm()
	defer func() {
		if r := recover(); r != nil {
			b.ReportError(op, fmt.Errorf("panic processing %s: %v", op, r))
		}
	}()

	if err := process(rec); err != nil {
		b.ReportError(op, err)
	}
}

// HandleCompletion routes a non-accept completion to the record's owner.
// Records without an owner are closed and released.
func (b *Base) HandleCompletion(rec *event.Record) {
	if h, ok := rec.UserToken.(CompletionHandler); ok {
		h.HandleCompletion(rec)
		return
	}

	logger.Debug("%s: dropping %s completion without owner", b.name, rec.Op)
	if rec.Conn != nil {
		_ = rec.Conn.Close()
	}
	rec.Release()
}
