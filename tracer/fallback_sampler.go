package tracer

import (
	"github.com/donetkit/contrib-xray/tracer/internal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewFallbackSampler returns a sampler which samples 1 req/sec and additional 5% of requests,
// the strategy X-Ray falls back to when no sampling rules are available.
func NewFallbackSampler() sdktrace.Sampler {
	return internal.NewFallbackSampler()
}
