package internal

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// neverExpires is the reservoir expiry of an applier which has not received a target yet.
var neverExpires = time.Unix(1<<40, 0)

// SamplingRuleApplier makes sampling decisions for spans matching one rule.
//
// Before X-Ray hands out a target for the rule the reservoir admits a single trial span per
// second, borrowed to signal interest in the rule. Once a target is applied the reservoir runs
// at the issued quota until its TTL and the fixed rate follows the target.
type SamplingRuleApplier struct {
	rule SamplingRule

	// statistics is shared with every applier derived through WithTarget.
	statistics *samplingStatistics

	reservoirSampler *RateLimitingSampler
	fixedRateSampler sdktrace.Sampler

	reservoirExpiresAt time.Time
	borrowingEnabled   bool

	clock clock
}

// NewSamplingRuleApplier returns an applier for rule with fresh statistics.
func NewSamplingRuleApplier(rule SamplingRule) *SamplingRuleApplier {
	return newSamplingRuleApplier(rule, &defaultClock{})
}

func newSamplingRuleApplier(rule SamplingRule, c clock) *SamplingRuleApplier {
	var reservoirQuota float64
	if rule.ReservoirSize > 0 {
		reservoirQuota = 1
	}

	return &SamplingRuleApplier{
		rule:               rule,
		statistics:         newSamplingStatistics(),
		reservoirSampler:   newRateLimitingSampler(reservoirQuota, c),
		fixedRateSampler:   sdktrace.TraceIDRatioBased(rule.FixedRate),
		reservoirExpiresAt: neverExpires,
		borrowingEnabled:   true,
		clock:              c,
	}
}

// Rule returns the rule the applier was built from.
func (a *SamplingRuleApplier) Rule() SamplingRule {
	return a.rule
}

// WithTarget returns a new applier for the same rule parameterized by target. The returned
// applier keeps counting into the statistics of a.
func (a *SamplingRuleApplier) WithTarget(target *SamplingTargetDocument) *SamplingRuleApplier {
	applier := &SamplingRuleApplier{
		rule:               a.rule,
		statistics:         a.statistics,
		reservoirSampler:   a.reservoirSampler,
		fixedRateSampler:   a.fixedRateSampler,
		reservoirExpiresAt: a.clock.now(),
		borrowingEnabled:   false,
		clock:              a.clock,
	}

	if target.ReservoirQuota != nil {
		applier.reservoirSampler = newRateLimitingSampler(*target.ReservoirQuota, a.clock)
	}
	if target.ReservoirQuotaTTL != nil {
		applier.reservoirExpiresAt = epochSeconds(*target.ReservoirQuotaTTL)
	}
	if target.FixedRate != nil {
		applier.fixedRateSampler = sdktrace.TraceIDRatioBased(*target.FixedRate)
	}
	return applier
}

// Matches reports whether the rule of the applier applies to a span with attributes running
// on res.
func (a *SamplingRuleApplier) Matches(attributes []attribute.KeyValue, res *resource.Resource) bool {
	return a.rule.matches(attributes, res)
}

// ShouldSample consults the reservoir while it has not expired and the fixed rate sampler when
// the reservoir drops the span.
func (a *SamplingRuleApplier) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	var (
		result      = sdktrace.SamplingResult{Decision: sdktrace.Drop}
		hasBorrowed bool
	)

	if a.clock.now().Before(a.reservoirExpiresAt) {
		result = a.reservoirSampler.ShouldSample(parameters)
		hasBorrowed = a.borrowingEnabled && result.Decision != sdktrace.Drop
	}

	if result.Decision == sdktrace.Drop {
		result = a.fixedRateSampler.ShouldSample(parameters)
	}

	a.statistics.record(result.Decision != sdktrace.Drop, hasBorrowed)
	return result
}

// SnapshotStatistics returns the counters recorded since the previous snapshot and resets them.
func (a *SamplingRuleApplier) SnapshotStatistics() Statistics {
	return a.statistics.snapshot()
}

func epochSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second)))
}
