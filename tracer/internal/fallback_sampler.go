package internal

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	fallbackQuota     = 1
	fallbackFixedRate = 0.05
)

// FallbackSampler samples 1 req/sec and additional 5% of requests using TraceIDRatioBasedSampler.
// It is used whenever no trustworthy sampling rules are available.
type FallbackSampler struct {
	rateLimitingSampler *RateLimitingSampler
	fixedRateSampler    sdktrace.Sampler
}

// Compile time assertion that FallbackSampler implements the Sampler interface.
var _ sdktrace.Sampler = (*FallbackSampler)(nil)

// NewFallbackSampler returns a FallbackSampler driven by the wall clock.
func NewFallbackSampler() *FallbackSampler {
	return newFallbackSampler(&defaultClock{})
}

func newFallbackSampler(c clock) *FallbackSampler {
	return &FallbackSampler{
		rateLimitingSampler: newRateLimitingSampler(fallbackQuota, c),
		fixedRateSampler:    sdktrace.TraceIDRatioBased(fallbackFixedRate),
	}
}

// ShouldSample tries the rate limiter first and falls through to the trace id ratio sampler
// when the limiter has no quota left.
func (fs *FallbackSampler) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	result := fs.rateLimitingSampler.ShouldSample(parameters)
	if result.Decision != sdktrace.Drop {
		return result
	}
	return fs.fixedRateSampler.ShouldSample(parameters)
}

// Description returns description of the sampler being used.
func (fs *FallbackSampler) Description() string {
	return "FallbackSampler{fallback sampling with sampling config of 1 req/sec and 5% of additional requests}"
}
