package internal

import (
	"testing"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
)

func defaultRule() SamplingRule {
	return SamplingRule{
		RuleName:      DefaultRuleName,
		Priority:      10000,
		ReservoirSize: 1,
		FixedRate:     0.05,
		ServiceName:   "*",
		ServiceType:   "*",
		Host:          "*",
		HTTPMethod:    "*",
		URLPath:       "*",
		ResourceARN:   "*",
		Version:       1,
	}
}

func pathRule(name string, priority int64, path string) SamplingRule {
	rule := defaultRule()
	rule.RuleName = name
	rule.Priority = priority
	rule.URLPath = path
	return rule
}

func newTestRuleCache(clock *mockClock) *RuleCache {
	res := resource.NewSchemaless(semconv.ServiceNameKey.String("test-service"))
	return newRuleCache(res, glog.New(), clock)
}

func appliersFor(clock *mockClock, rules ...SamplingRule) []*SamplingRuleApplier {
	appliers := make([]*SamplingRuleApplier, 0, len(rules))
	for _, rule := range rules {
		appliers = append(appliers, newSamplingRuleApplier(rule, clock))
	}
	return appliers
}

func ruleNames(rc *RuleCache) []string {
	var names []string
	for _, applier := range rc.Appliers() {
		names = append(names, applier.Rule().RuleName)
	}
	return names
}

func TestRuleCacheSortsByPriorityThenName(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)

	rc.UpdateRules(appliersFor(clock,
		defaultRule(),
		pathRule("b", 1, "/b"),
		pathRule("c", 2, "/c"),
		pathRule("a", 1, "/a"),
	))

	assert.Equal(t, []string{"a", "b", "c", DefaultRuleName}, ruleNames(rc))
}

func TestRuleCacheMatchedRule(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	assert.Nil(t, rc.MatchedRule(nil))

	rc.UpdateRules(appliersFor(clock, defaultRule(), pathRule("api", 1, "/api/*")))

	matched := rc.MatchedRule([]attribute.KeyValue{semconv.HTTPTargetKey.String("/api/orders")})
	require.NotNil(t, matched)
	assert.Equal(t, "api", matched.Rule().RuleName)

	matched = rc.MatchedRule([]attribute.KeyValue{semconv.HTTPTargetKey.String("/health")})
	require.NotNil(t, matched)
	assert.Equal(t, DefaultRuleName, matched.Rule().RuleName)
}

func TestRuleCacheMatchedRuleFallsBackToDefaultByName(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)

	// a Default rule which does not match anything still catches every span
	rule := defaultRule()
	rule.URLPath = "/nothing"
	rc.UpdateRules(appliersFor(clock, rule))

	matched := rc.MatchedRule([]attribute.KeyValue{semconv.HTTPTargetKey.String("/health")})
	require.NotNil(t, matched)
	assert.Equal(t, DefaultRuleName, matched.Rule().RuleName)
}

func TestRuleCacheMatchesWithAttributelessResource(t *testing.T) {
	for _, res := range []*resource.Resource{resource.Empty(), resource.NewSchemaless(), nil} {
		clock := newMockClock(epoch)
		rc := newRuleCache(res, glog.New(), clock)
		rc.UpdateRules(appliersFor(clock, pathRule("api", 1, "/api/*"), defaultRule()))

		matched := rc.MatchedRule([]attribute.KeyValue{semconv.HTTPTargetKey.String("/api/orders")})
		require.NotNil(t, matched)
		assert.Equal(t, "api", matched.Rule().RuleName)

		matched = rc.MatchedRule(nil)
		require.NotNil(t, matched)
		assert.Equal(t, DefaultRuleName, matched.Rule().RuleName)
	}
}

func TestRuleCachePreservesUnchangedRules(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)

	rc.UpdateRules(appliersFor(clock, defaultRule(), pathRule("a", 1, "/a"), pathRule("b", 2, "/b")))
	before := rc.Appliers()

	rc.UpdateRules(appliersFor(clock, defaultRule(), pathRule("a", 1, "/a-changed"), pathRule("b", 2, "/b")))
	after := rc.Appliers()

	require.Len(t, after, 3)
	assert.NotSame(t, before[0], after[0], "changed rule gets a new applier")
	assert.Equal(t, "/a-changed", after[0].Rule().URLPath)
	assert.Same(t, before[1], after[1])
	assert.Same(t, before[2], after[2])
}

func TestRuleCacheDropsRemovedRules(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)

	rc.UpdateRules(appliersFor(clock, defaultRule(), pathRule("a", 1, "/a")))
	rc.UpdateRules(appliersFor(clock, defaultRule()))

	assert.Equal(t, []string{DefaultRuleName}, ruleNames(rc))
}

func TestRuleCacheExpired(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	assert.False(t, rc.Expired())

	clock.add(time.Hour)
	assert.False(t, rc.Expired())

	clock.add(time.Second)
	assert.True(t, rc.Expired())

	rc.UpdateRules(appliersFor(clock, defaultRule()))
	assert.False(t, rc.Expired())
}

func TestRuleCacheUpdateTargets(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	rc.UpdateRules(appliersFor(clock, defaultRule(), pathRule("a", 1, "/a"), pathRule("b", 2, "/b")))
	before := rc.Appliers()

	targets := map[string]*SamplingTargetDocument{
		"a":       {RuleName: "a", FixedRate: float64Ptr(0.5), Interval: int64Ptr(25)},
		"b":       {RuleName: "b", FixedRate: float64Ptr(0.2), Interval: int64Ptr(12)},
		"unknown": {RuleName: "unknown", Interval: int64Ptr(1)},
	}

	refresh, interval := rc.UpdateTargets(targets, float64(epoch.Unix()-10))
	assert.False(t, refresh)
	assert.Equal(t, 12*time.Second, interval)

	after := rc.Appliers()
	assert.NotSame(t, before[0], after[0])
	assert.NotSame(t, before[1], after[1])
	assert.Same(t, before[2], after[2])
}

func TestRuleCacheUpdateTargetsDefaults(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	rc.UpdateRules(appliersFor(clock, defaultRule()))

	refresh, interval := rc.UpdateTargets(map[string]*SamplingTargetDocument{
		DefaultRuleName: {RuleName: DefaultRuleName, FixedRate: float64Ptr(0.1)},
	}, 0)
	assert.False(t, refresh)
	assert.Equal(t, DefaultTargetPollingInterval, interval)
}

func TestRuleCacheUpdateTargetsRequestsRefresh(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	rc.UpdateRules(appliersFor(clock, defaultRule()))

	refresh, _ := rc.UpdateTargets(nil, float64(epoch.Unix()+1))
	assert.True(t, refresh)

	refresh, _ = rc.UpdateTargets(nil, float64(epoch.Unix()))
	assert.False(t, refresh)
}

func TestRuleCacheStatisticsDocuments(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	rc.UpdateRules(appliersFor(clock, defaultRule(), pathRule("api", 1, "/api/*")))

	clock.add(time.Second)
	api := []attribute.KeyValue{semconv.HTTPTargetKey.String("/api/orders")}
	for i := 0; i < 3; i++ {
		rc.MatchedRule(api).ShouldSample(sdktrace.SamplingParameters{TraceID: unsampledTraceID, Attributes: api})
	}

	want := []*SamplingStatisticsDocument{
		{ClientID: "client", RuleName: "api", Timestamp: epoch.Unix() + 1, RequestCount: 3, SampledCount: 1, BorrowCount: 1},
		{ClientID: "client", RuleName: DefaultRuleName, Timestamp: epoch.Unix() + 1},
	}
	if diff := cmp.Diff(want, rc.CreateSamplingStatisticsDocuments("client")); diff != "" {
		t.Errorf("statistics documents mismatch (-want +got):\n%s", diff)
	}

	// counters were reset by the report
	for _, doc := range rc.CreateSamplingStatisticsDocuments("client") {
		assert.Zero(t, doc.RequestCount)
	}
}

func TestRuleCacheStatisticsSurviveTargets(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	rc.UpdateRules(appliersFor(clock, defaultRule()))

	clock.add(time.Second)
	rc.MatchedRule(nil).ShouldSample(sdktrace.SamplingParameters{TraceID: unsampledTraceID})

	rc.UpdateTargets(map[string]*SamplingTargetDocument{
		DefaultRuleName: {RuleName: DefaultRuleName, FixedRate: float64Ptr(0.1)},
	}, 0)
	rc.MatchedRule(nil).ShouldSample(sdktrace.SamplingParameters{TraceID: unsampledTraceID})

	docs := rc.CreateSamplingStatisticsDocuments("client")
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0].RequestCount)
	assert.Equal(t, int64(1), docs[0].BorrowCount)
}

// TestRuleCacheDefaultRuleSampling walks the Default rule (reservoir 1, rate 0.05) through
// its first seconds: one borrowed span per second and nothing else for unsampled trace ids.
func TestRuleCacheDefaultRuleSampling(t *testing.T) {
	clock := newMockClock(epoch)
	rc := newTestRuleCache(clock)
	rc.UpdateRules(appliersFor(clock, defaultRule()))

	params := sdktrace.SamplingParameters{TraceID: unsampledTraceID}
	sampled := 0
	for i := 0; i < 5; i++ {
		clock.add(time.Second)
		for j := 0; j < 10; j++ {
			if rc.MatchedRule(nil).ShouldSample(params).Decision == sdktrace.RecordAndSample {
				sampled++
			}
		}
	}
	assert.Equal(t, 5, sampled)

	docs := rc.CreateSamplingStatisticsDocuments("client")
	require.Len(t, docs, 1)
	assert.Equal(t, int64(50), docs[0].RequestCount)
	assert.Equal(t, int64(5), docs[0].SampledCount)
	assert.Equal(t, int64(5), docs[0].BorrowCount)
}
