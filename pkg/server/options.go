package server

import (
	"github.com/marmos91/dittonet/pkg/metrics"
	"github.com/marmos91/dittonet/pkg/session"
	"github.com/marmos91/dittonet/pkg/socket"
	"go.opentelemetry.io/otel/trace"
)

// Option customizes a Server.
type Option func(*Server)

// WithSessionFactory replaces the factory that turns accepted connections
// into sessions.
func WithSessionFactory(f session.Factory) Option {
	return func(s *Server) {
		s.factory = f
	}
}

// WithDataHandler sets the handler receiving data on sessions built by the
// default factory.
func WithDataHandler(h session.DataHandler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithMetrics adds an external metrics sink. The in-memory Stats are always
// kept as well.
func WithMetrics(m metrics.ServerMetrics) Option {
	return func(s *Server) {
		s.sink = m
	}
}

// WithTracerProvider sets the provider used for admission spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

// WithEndpointFactory replaces how the listening endpoint is opened.
func WithEndpointFactory(f socket.EndpointFactory) Option {
	return func(s *Server) {
		s.openEndpoint = f
	}
}
