package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/pkg/event"
	"github.com/marmos91/dittonet/pkg/registry"
	"github.com/marmos91/dittonet/pkg/session"
	"github.com/marmos91/dittonet/pkg/socket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Decision is an accepted subscriber's verdict on a new connection.
type Decision int

const (
	// Admit lets the connection through.
	Admit Decision = iota
	// Reject vetoes the connection; it is closed without being registered.
	Reject
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// AcceptedHandler is notified of every accepted connection before it is
// registered. Handlers run synchronously on a completion worker, in
// subscription order, and all of them run even after one has rejected.
type AcceptedHandler func(s *Server, a *Admission) Decision

// Admission describes a connection awaiting admission. It is only valid for
// the duration of the AcceptedHandler call.
type Admission struct {
	rec     *event.Record
	session *session.Session
	vetoed  bool
}

// Session returns the session that will be registered if admitted.
func (a *Admission) Session() *session.Session {
	return a.session
}

// RemoteAddr returns the peer address.
func (a *Admission) RemoteAddr() net.Addr {
	return a.session.RemoteAddr()
}

// Err returns the completion status of the accept.
func (a *Admission) Err() error {
	return a.rec.Err
}

// Vetoed reports whether an earlier subscriber already rejected the
// connection.
func (a *Admission) Vetoed() bool {
	return a.vetoed
}

// OnAccepted subscribes h to accepted connections. While no handler is
// subscribed, accepted connections are closed immediately.
func (s *Server) OnAccepted(h AcceptedHandler) {
	if h == nil {
		return
	}

	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	old := *s.subscribers.Load()
	next := make([]AcceptedHandler, len(old), len(old)+1)
	copy(next, old)
	next = append(next, h)
	s.subscribers.Store(&next)
}

// admit runs the admission protocol for one successful accept. Unless
// ownership of rec passes to a started session, the connection is closed
// and rec released before admit returns.
func (s *Server) admit(rs *runState, rec *event.Record) error {
	conn := rec.Conn

	_, span := s.tracer.Start(context.Background(), "dittonet.admit",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.address", remoteOf(rec))),
	)
	defer span.End()

	handedOff := false
	defer func() {
		if handedOff {
			return
		}
		if conn != nil {
			_ = conn.Close()
		}
		rec.Release()
	}()

	if s.throttle != nil && !s.throttle.Allow() {
		s.metrics.RecordRejected()
		span.SetAttributes(attribute.String("dittonet.decision", "throttled"))
		logger.Debug("Admission throttled: connection from %s refused", remoteOf(rec))
		return nil
	}

	sess, err := rs.factory.CreateSession(rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create session")
		return fmt.Errorf("create session: %w", err)
	}
	sess.SetRemote(rec)
	sess.SetDisconnectOnEmptyData(true)
	rec.UserToken = sess

	decision := s.publishAccepted(&Admission{rec: rec, session: sess})
	span.SetAttributes(attribute.String("dittonet.decision", decision.String()))
	if decision == Reject {
		s.metrics.RecordRejected()
		logger.Debug("Connection from %s vetoed by subscriber", sess.RemoteAddr())
		return nil
	}

	reg := rs.sessions
	id, err := reg.Add(sess)
	if errors.Is(err, registry.ErrClosed) {
		span.SetAttributes(attribute.String("dittonet.decision", "shutdown"))
		logger.Debug("Connection from %s dropped: server shutting down", sess.RemoteAddr())
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register session")
		return fmt.Errorf("register session: %w", err)
	}
	span.SetAttributes(attribute.Int64("dittonet.session.id", id))

	sess.OnReceive(func(_ *session.Session, n int) {
		s.metrics.RecordReceive(n)
	})
	sess.OnClose(func(closed *session.Session) {
		if reg.Remove(closed.ID()) {
			s.publishActive(reg)
		}
	})
	s.publishActive(reg)

	if err := socket.EnableKeepAlive(conn, s.config.KeepAlivePeriod); err != nil {
		logger.Debug("Session %d: keep-alive not enabled: %v", id, err)
	}

	logger.Debug("Session %d admitted from %s (trace %s)", id, sess.RemoteAddr(), sess.TraceID())

	handedOff = true
	sess.Start(rec)
	return nil
}

// publishAccepted runs every accepted subscriber and folds their verdicts.
func (s *Server) publishAccepted(a *Admission) Decision {
	for i, h := range *s.subscribers.Load() {
		if s.invokeAccepted(i, h, a) == Reject {
			a.vetoed = true
		}
	}
	if a.vetoed {
		return Reject
	}
	return Admit
}

// invokeAccepted calls one subscriber. A panicking subscriber rejects.
func (s *Server) invokeAccepted(i int, h AcceptedHandler, a *Admission) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			s.base.ReportError(event.OpAccept, fmt.Errorf("accepted subscriber %d panicked: %v", i, r))
			d = Reject
		}
	}()
	return h(s, a)
}
