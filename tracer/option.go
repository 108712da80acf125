package tracer

import (
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Option specifies instrumentation configuration options.
type Option interface {
	apply(*Server)
}

type optionFunc func(*Server)

func (o optionFunc) apply(s *Server) {
	o(s)
}

// WithName sets the instrumentation name of the tracer. Defaults to "Service".
func WithName(name string) Option {
	return optionFunc(func(s *Server) {
		if name != "" {
			s.tracerName = name
		}
	})
}

// WithProvider specifies a tracer provider to use for creating a tracer.
// If none is specified, the global provider is used.
func WithProvider(provider trace.TracerProvider) Option {
	return optionFunc(func(s *Server) {
		s.TracerProvider = provider
	})
}

// WithPropagators specifies propagators to use for extracting
// information from the HTTP requests. If none are specified, global
// ones will be used.
func WithPropagators(propagators propagation.TextMapPropagator) Option {
	return optionFunc(func(s *Server) {
		s.Propagators = propagators
	})
}
