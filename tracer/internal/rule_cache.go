package internal

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	// ruleCacheTTL is how long rules are trusted after the last successful refresh.
	ruleCacheTTL = time.Hour

	// DefaultTargetPollingInterval is used when no target reports an interval.
	DefaultTargetPollingInterval = 10 * time.Second
)

// RuleCache holds the sampling rules ordered by priority and then by name.
//
// The rule list is replaced wholesale under mu and published through an atomic value.
// Readers never take mu.
type RuleCache struct {
	appliers atomic.Value // []*SamplingRuleApplier

	// lastUpdated is the unix nano timestamp of the last rules update.
	lastUpdated int64

	resource *resource.Resource
	clock    clock
	logger   glog.ILoggerEntry
	mu       sync.Mutex
}

// NewRuleCache returns an empty RuleCache matching rules against res.
func NewRuleCache(res *resource.Resource, logger glog.ILogger) *RuleCache {
	return newRuleCache(res, logger, &defaultClock{})
}

func newRuleCache(res *resource.Resource, logger glog.ILogger, c clock) *RuleCache {
	if logger == nil {
		logger = glog.New()
	}
	rc := &RuleCache{
		resource:    res,
		clock:       c,
		logger:      logger.WithField("RuleCache", "RuleCache"),
		lastUpdated: c.now().UnixNano(),
	}
	rc.appliers.Store([]*SamplingRuleApplier{})
	return rc
}

// Appliers returns the current rule appliers in matching order.
func (rc *RuleCache) Appliers() []*SamplingRuleApplier {
	return rc.appliers.Load().([]*SamplingRuleApplier)
}

// Expired returns true if the rules have not been refreshed within ruleCacheTTL.
func (rc *RuleCache) Expired() bool {
	lastUpdated := time.Unix(0, atomic.LoadInt64(&rc.lastUpdated))
	return rc.clock.now().Sub(lastUpdated) > ruleCacheTTL
}

// MatchedRule returns the first applier in priority order whose rule matches attributes. The
// Default rule matches any span. It returns nil when no rule applies.
func (rc *RuleCache) MatchedRule(attributes []attribute.KeyValue) *SamplingRuleApplier {
	for _, applier := range rc.Appliers() {
		if applier.Matches(attributes, rc.resource) || applier.rule.RuleName == DefaultRuleName {
			return applier
		}
	}
	return nil
}

// UpdateRules replaces the rules with appliers. An incoming rule equal to a known rule of the
// same name keeps the known applier, with its statistics, reservoir and target.
func (rc *RuleCache) UpdateRules(appliers []*SamplingRuleApplier) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	current := make(map[string]*SamplingRuleApplier)
	for _, applier := range rc.Appliers() {
		current[applier.rule.RuleName] = applier
	}

	updated := make([]*SamplingRuleApplier, len(appliers))
	for i, applier := range appliers {
		updated[i] = applier
		if known, ok := current[applier.rule.RuleName]; ok && known.rule.Equal(applier.rule) {
			updated[i] = known
		}
	}

	sort.SliceStable(updated, func(i, j int) bool {
		if updated[i].rule.Priority == updated[j].rule.Priority {
			return updated[i].rule.RuleName < updated[j].rule.RuleName
		}
		return updated[i].rule.Priority < updated[j].rule.Priority
	})

	rc.appliers.Store(updated)
	atomic.StoreInt64(&rc.lastUpdated, rc.clock.now().UnixNano())
}

// CreateSamplingStatisticsDocuments snapshots the statistics of every rule, resetting their
// counters, and returns them as documents for getSamplingTargets.
func (rc *RuleCache) CreateSamplingStatisticsDocuments(clientID string) []*SamplingStatisticsDocument {
	appliers := rc.Appliers()
	documents := make([]*SamplingStatisticsDocument, 0, len(appliers))

	for _, applier := range appliers {
		statistics := applier.SnapshotStatistics()
		documents = append(documents, &SamplingStatisticsDocument{
			ClientID:     clientID,
			RuleName:     applier.rule.RuleName,
			Timestamp:    rc.clock.now().Unix(),
			RequestCount: statistics.RequestCount,
			BorrowCount:  statistics.BorrowCount,
			SampledCount: statistics.SampleCount,
		})
	}
	return documents
}

// UpdateTargets applies targets, keyed by rule name, to the matching appliers. It reports
// whether X-Ray modified the rules after the last rules update, and the interval at which
// targets should be polled next: the smallest interval among the applied targets, or
// DefaultTargetPollingInterval.
func (rc *RuleCache) UpdateTargets(targets map[string]*SamplingTargetDocument, lastRuleModification float64) (refreshRules bool, nextPollingInterval time.Duration) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	var minInterval *int64
	current := rc.Appliers()
	updated := make([]*SamplingRuleApplier, len(current))

	for i, applier := range current {
		updated[i] = applier

		target, ok := targets[applier.rule.RuleName]
		if !ok {
			continue
		}
		updated[i] = applier.WithTarget(target)

		if target.Interval != nil && (minInterval == nil || *target.Interval < *minInterval) {
			minInterval = target.Interval
		}
	}

	for name := range targets {
		if !rc.hasRule(updated, name) {
			rc.logger.Debugf("ignoring sampling target for unknown rule %s", name)
		}
	}

	rc.appliers.Store(updated)

	nextPollingInterval = DefaultTargetPollingInterval
	if minInterval != nil {
		nextPollingInterval = time.Duration(*minInterval) * time.Second
	}

	lastUpdatedMillis := atomic.LoadInt64(&rc.lastUpdated) / int64(time.Millisecond)
	refreshRules = lastRuleModification*1000 > float64(lastUpdatedMillis)
	return refreshRules, nextPollingInterval
}

func (rc *RuleCache) hasRule(appliers []*SamplingRuleApplier, name string) bool {
	for _, applier := range appliers {
		if applier.rule.RuleName == name {
			return true
		}
	}
	return false
}
