package prometheus

import (
	"github.com/marmos91/dittonet/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics is the Prometheus implementation of metrics.ServerMetrics.
type serverMetrics struct {
	connectionsAccepted prometheus.Counter
	receives            prometheus.Counter
	receivedBytes       prometheus.Counter
	rejected            prometheus.Counter
	acceptErrors        prometheus.Counter
	activeSessions      prometheus.Gauge
}

// NewServerMetrics creates Prometheus-backed server metrics registered with
// reg. A nil reg selects the global registry; if that is not initialized
// either, a no-op implementation is returned.
func NewServerMetrics(reg prometheus.Registerer) metrics.ServerMetrics {
	if reg == nil {
		if !metrics.IsEnabled() {
			return metrics.NewNoopServerMetrics()
		}
		reg = metrics.GetRegistry()
	}

	factory := promauto.With(reg)

	return &serverMetrics{
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dittonet_connections_accepted_total",
			Help: "Total number of accepted TCP connections, admitted or not",
		}),
		receives: factory.NewCounter(prometheus.CounterOpts{
			Name: "dittonet_receives_total",
			Help: "Total number of non-empty receives on admitted sessions",
		}),
		receivedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "dittonet_received_bytes_total",
			Help: "Total bytes received on admitted sessions",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "dittonet_admissions_rejected_total",
			Help: "Total number of connections refused by a subscriber or the admission throttle",
		}),
		acceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dittonet_accept_errors_total",
			Help: "Total number of failed accepts, excluding accepts aborted by shutdown",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dittonet_active_sessions",
			Help: "Current number of registered sessions",
		}),
	}
}

func (m *serverMetrics) RecordAccept() {
	m.connectionsAccepted.Inc()
}

func (m *serverMetrics) RecordReceive(bytes int) {
	m.receives.Inc()
	if bytes > 0 {
		m.receivedBytes.Add(float64(bytes))
	}
}

func (m *serverMetrics) RecordRejected() {
	m.rejected.Inc()
}

func (m *serverMetrics) RecordAcceptError() {
	m.acceptErrors.Inc()
}

func (m *serverMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}
