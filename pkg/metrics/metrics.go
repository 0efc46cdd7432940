package metrics

// ServerMetrics records accept and session activity of a server.
//
// The server calls these methods from completion workers, so implementations
// must be safe for concurrent use. A nil ServerMetrics passed to the server is
// replaced by the no-op implementation.
//
// Example usage:
//
//	// Prometheus-backed
//	m := prometheus.NewServerMetrics(nil)
//	srv, _ := server.New(cfg, server.WithMetrics(m))
//
//	// No metrics
//	srv, _ := server.New(cfg)
type ServerMetrics interface {
	// RecordAccept counts one successfully accepted connection, whether or
	// not it is later admitted.
	RecordAccept()

	// RecordReceive counts one non-empty receive of the given size on an
	// admitted session.
	RecordReceive(bytes int)

	// RecordRejected counts one connection refused by a subscriber veto or
	// the admission throttle.
	RecordRejected()

	// RecordAcceptError counts one failed (non-aborted) accept.
	RecordAcceptError()

	// SetActiveSessions updates the number of registered sessions.
	SetActiveSessions(count int)
}

type noopServerMetrics struct{}

// NewNoopServerMetrics returns a ServerMetrics that discards everything.
func NewNoopServerMetrics() ServerMetrics {
	return noopServerMetrics{}
}

func (noopServerMetrics) RecordAccept()         {}
func (noopServerMetrics) RecordReceive(int)     {}
func (noopServerMetrics) RecordRejected()       {}
func (noopServerMetrics) RecordAcceptError()    {}
func (noopServerMetrics) SetActiveSessions(int) {}

type teeServerMetrics []ServerMetrics

// Tee fans every call out to each non-nil sink in order.
func Tee(sinks ...ServerMetrics) ServerMetrics {
	var t teeServerMetrics
	for _, s := range sinks {
		if s != nil {
			t = append(t, s)
		}
	}
	if len(t) == 0 {
		return NewNoopServerMetrics()
	}
	if len(t) == 1 {
		return t[0]
	}
	return t
}

func (t teeServerMetrics) RecordAccept() {
	for _, m := range t {
		m.RecordAccept()
	}
}

func (t teeServerMetrics) RecordReceive(bytes int) {
	for _, m := range t {
		m.RecordReceive(bytes)
	}
}

func (t teeServerMetrics) RecordRejected() {
	for _, m := range t {
		m.RecordRejected()
	}
}

func (t teeServerMetrics) RecordAcceptError() {
	for _, m := range t {
		m.RecordAcceptError()
	}
}

func (t teeServerMetrics) SetActiveSessions(count int) {
	for _, m := range t {
		m.SetActiveSessions(count)
	}
}
