package server

import (
	"time"

	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/pkg/event"
)

// startAccept issues one accept on rec. A synchronous completion is queued
// like any other so deep chains of synchronous failures cannot grow the
// stack.
func (s *Server) startAccept(rs *runState, rec *event.Record) {
	rec.PrepareAccept()
	if rs.endpoint.AcceptAsync(rec) {
		return
	}

	if !rs.dispatcher.Post(rec) {
		// Shutting down: the slot ends here.
		if rec.Conn != nil {
			_ = rec.Conn.Close()
		}
		rec.Release()
	}
}

// retryDelay returns the delay before the re-issue that follows the n-th
// consecutive transient failure.
func (s *Server) retryDelay(n int64) time.Duration {
	delay := s.config.AcceptRetryDelay
	limit := max(MaxAcceptRetryDelay, delay)
	for i := int64(1); i < n && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}

// rearmAfterError re-issues an accept on rec after a transient failure,
// backing off while failures keep coming.
func (s *Server) rearmAfterError(rs *runState, rec *event.Record) {
	delay := s.retryDelay(rs.failures.Add(1))

	rs.mu.Lock()
	if rs.stopped {
		rs.mu.Unlock()
		s.startAccept(rs, rec)
		return
	}
	rs.retries.Add(1)
	rs.mu.Unlock()

	go func() {
		defer rs.retries.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-rs.stopping:
		}
		s.startAccept(rs, rec)
	}()
}

// handleCompletion is the single entry point for completed records. Accepts
// are processed by the engine; everything else belongs to the record's owner.
func (s *Server) handleCompletion(rs *runState, rec *event.Record) {
	switch rec.Op {
	case event.OpAccept:
		s.processAccept(rs, rec)
	default:
		s.base.HandleCompletion(rec)
	}
}

// processAccept handles one accept completion.
//
// Every path either re-arms exactly one accept or, for an aborted accept,
// lets the slot end, which keeps the standing count constant while the
// listener is open.
func (s *Server) processAccept(rs *runState, rec *event.Record) {
	if rec.Err != nil {
		if rec.Aborted() {
			s.base.ReportError(event.OpAccept, rec.Err)
			rec.Release()
			return
		}

		s.metrics.RecordAcceptError()
		s.base.ReportError(event.OpAccept, rec.Err)
		logger.Warn("Accept failed, re-issuing: %v", rec.Err)
		if rec.Conn != nil {
			_ = rec.Conn.Close()
		}
		s.rearmAfterError(rs, rec)
		return
	}

	rs.failures.Store(0)
	s.metrics.RecordAccept()

	if len(*s.subscribers.Load()) == 0 {
		logger.Debug("No accepted subscribers, discarding connection from %s", remoteOf(rec))
		if rec.Conn != nil {
			_ = rec.Conn.Close()
		}
		s.startAccept(rs, rec)
		return
	}

	s.base.ProcessWithRearm(rec,
		func() { s.startAccept(rs, rs.pool.Get()) },
		func(rec *event.Record) error { return s.admit(rs, rec) },
	)
}

func remoteOf(rec *event.Record) string {
	if rec.Conn == nil {
		return "<nil>"
	}
	return rec.Conn.RemoteAddr().String()
}
