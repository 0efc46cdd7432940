package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is the in-memory ServerMetrics every server keeps, independent of
// any exporter.
type Stats struct {
	started time.Time

	accepts      atomic.Uint64
	receives     atomic.Uint64
	bytes        atomic.Uint64
	rejected     atomic.Uint64
	acceptErrors atomic.Uint64
	active       atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Accepts        uint64  `json:"accepts"`
	Receives       uint64  `json:"receives"`
	BytesReceived  uint64  `json:"bytes_received"`
	Rejected       uint64  `json:"rejected"`
	AcceptErrors   uint64  `json:"accept_errors"`
	ActiveSessions int64   `json:"active_sessions"`
	AcceptRate     float64 `json:"accept_rate"`
	ReceiveRate    float64 `json:"receive_rate"`
	ByteRate       float64 `json:"byte_rate"`
}

// NewStats creates zeroed statistics.
func NewStats() *Stats {
	return &Stats{started: time.Now()}
}

func (s *Stats) RecordAccept() {
	s.accepts.Add(1)
}

func (s *Stats) RecordReceive(bytes int) {
	s.receives.Add(1)
	if bytes > 0 {
		s.bytes.Add(uint64(bytes))
	}
}

func (s *Stats) RecordRejected() {
	s.rejected.Add(1)
}

func (s *Stats) RecordAcceptError() {
	s.acceptErrors.Add(1)
}

func (s *Stats) SetActiveSessions(count int) {
	s.active.Store(int64(count))
}

func (s *Stats) Accepts() uint64 {
	return s.accepts.Load()
}

func (s *Stats) Receives() uint64 {
	return s.receives.Load()
}

func (s *Stats) BytesReceived() uint64 {
	return s.bytes.Load()
}

func (s *Stats) Rejected() uint64 {
	return s.rejected.Load()
}

func (s *Stats) AcceptErrors() uint64 {
	return s.acceptErrors.Load()
}

func (s *Stats) ActiveSessions() int64 {
	return s.active.Load()
}

// Snapshot copies the counters. Rates are averaged over the lifetime of the
// Stats; use a Sampler for windowed rates. Snapshot does not modify s.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := s.counters()
	snap.setRates(StatsSnapshot{}, time.Since(s.started))
	return snap
}

func (s *Stats) counters() StatsSnapshot {
	return StatsSnapshot{
		Accepts:        s.Accepts(),
		Receives:       s.Receives(),
		BytesReceived:  s.BytesReceived(),
		Rejected:       s.Rejected(),
		AcceptErrors:   s.AcceptErrors(),
		ActiveSessions: s.ActiveSessions(),
	}
}

func (snap *StatsSnapshot) setRates(prev StatsSnapshot, elapsed time.Duration) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return
	}
	snap.AcceptRate = float64(snap.Accepts-prev.Accepts) / secs
	snap.ReceiveRate = float64(snap.Receives-prev.Receives) / secs
	snap.ByteRate = float64(snap.BytesReceived-prev.BytesReceived) / secs
}

// Sampler reports per-second rates over windows that belong to its owner.
// Each periodic reader keeps its own Sampler, so readers never shorten each
// other's windows.
type Sampler struct {
	stats *Stats

	mu       sync.Mutex
	last     StatsSnapshot
	lastTime time.Time
}

// NewSampler creates a Sampler whose first window starts now.
func (s *Stats) NewSampler() *Sampler {
	return &Sampler{
		stats:    s,
		last:     s.counters(),
		lastTime: time.Now(),
	}
}

// Sample copies the counters, computes rates since the previous Sample and
// starts a new window.
func (p *Sampler) Sample() StatsSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	snap := p.stats.counters()
	snap.setRates(p.last, now.Sub(p.lastTime))

	p.last = snap
	p.lastTime = now
	return snap
}
