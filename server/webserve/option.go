package webserve

import (
	"net/http"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/tracer"
)

// Option for the web server
type Option func(*Server)

// WithServiceName set serviceName function
func WithServiceName(serviceName string) Option {
	return func(s *Server) {
		s.ServiceName = serviceName
	}
}

// WithHost set host function
func WithHost(host string) Option {
	return func(s *Server) {
		s.Host = host
	}
}

// WithPort set port function
func WithPort(port int) Option {
	return func(s *Server) {
		s.Port = port
	}
}

// WithHandler set handler function
func WithHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.handler = handler
	}
}

// WithReadTimeout set readTimeout function
func WithReadTimeout(readTimeout time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = readTimeout
	}
}

// WithWriterTimeout set writerTimeout function
func WithWriterTimeout(writerTimeout time.Duration) Option {
	return func(s *Server) {
		s.writerTimeout = writerTimeout
	}
}

// WithShutdownTimeout bounds the graceful shutdown of the server and its tracer.
func WithShutdownTimeout(shutdownTimeout time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = shutdownTimeout
	}
}

// WithLogger set logger function
func WithLogger(logger glog.ILogger) Option {
	return func(s *Server) {
		s.Logger = logger.WithField("WebServe", "WebServe")
	}
}

// WithTracer set tracer function. The tracer is stopped, flushing sampled spans, when the
// server stops.
func WithTracer(t *tracer.Server) Option {
	return func(s *Server) {
		s.Tracer = t
	}
}
