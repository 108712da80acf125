package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelBaggage "go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	otelTrace "go.opentelemetry.io/otel/trace"
)

// Server bundles the tracer of a service with the provider and the propagators it came from.
type Server struct {
	tracerName     string
	TracerProvider otelTrace.TracerProvider
	Tracer         otelTrace.Tracer
	Propagators    propagation.TextMapPropagator
}

// New returns *tracer.Server
func New(opts ...Option) *Server {
	cfg := &Server{
		tracerName: "Service",
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	cfg.Tracer = cfg.TracerProvider.Tracer(
		cfg.tracerName,
		otelTrace.WithInstrumentationVersion(SemVersion()),
	)
	if cfg.Propagators == nil {
		cfg.Propagators = otel.GetTextMapPropagator()
	}
	return cfg
}

// Stop flushes and shuts down the provider when it is an SDK provider.
func (s *Server) Stop(ctx context.Context) error {
	if tp, ok := s.TracerProvider.(*trace.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}

func (s *Server) SpanFromContext(ctx context.Context) otelTrace.Span {
	return otelTrace.SpanFromContext(ctx)
}

func (s *Server) FromContext(ctx context.Context) otelBaggage.Baggage {
	return otelBaggage.FromContext(ctx)
}

// WithAttributes adds the attributes related to a span life-cycle event.
// The remote sampler matches rules against the attributes given at span start, so
// http.method, http.target and http.host belong here.
func (s *Server) WithAttributes(attributes ...attribute.KeyValue) otelTrace.SpanStartEventOption {
	return otelTrace.WithAttributes(attributes...)
}
