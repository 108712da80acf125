package internal

import (
	"fmt"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// RateLimitingSampler samples up to quota spans per second and drops the rest.
type RateLimitingSampler struct {
	quota     float64
	reservoir *rateLimiter
}

// Compile time assertion that RateLimitingSampler implements the Sampler interface.
var _ sdktrace.Sampler = (*RateLimitingSampler)(nil)

// NewRateLimitingSampler returns a sampler admitting quota spans per second.
func NewRateLimitingSampler(quota float64) *RateLimitingSampler {
	return newRateLimitingSampler(quota, &defaultClock{})
}

func newRateLimitingSampler(quota float64, c clock) *RateLimitingSampler {
	return &RateLimitingSampler{
		quota:     quota,
		reservoir: newRateLimiter(quota, time.Second, c),
	}
}

// ShouldSample records and samples when the reservoir still holds a unit of quota.
func (s *RateLimitingSampler) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	result := sdktrace.SamplingResult{
		Decision:   sdktrace.Drop,
		Attributes: parameters.Attributes,
		Tracestate: trace.SpanContextFromContext(parameters.ParentContext).TraceState(),
	}
	if s.reservoir.take(1) {
		result.Decision = sdktrace.RecordAndSample
	}
	return result
}

// Description returns description of the sampler being used.
func (s *RateLimitingSampler) Description() string {
	return fmt.Sprintf("RateLimitingSampler{rate limiting sampling with sampling config of %v req/sec and 0%% of additional requests}", s.quota)
}
