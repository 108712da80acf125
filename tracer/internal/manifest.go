package internal

import (
	"context"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/utils/com_http"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Manifest ties the rule cache to the X-Ray sampling APIs: it turns fetched rules and targets
// into cache updates and reports the statistics of the cache.
type Manifest struct {
	// ClientID identifies this process to X-Ray in every statistics report.
	ClientID string

	rules          *RuleCache
	xrayClient     *xrayClient
	requestTimeout time.Duration
	logger         glog.ILoggerEntry
	clock          clock
}

// ManifestConfig configures NewManifest.
type ManifestConfig struct {
	Endpoint       url.URL
	HTTPClient     com_http.HTTPClient
	RequestTimeout time.Duration
	Resource       *resource.Resource
	Logger         glog.ILogger
}

// NewManifest returns a manifest with an empty rule cache and an xrayClient configured to
// address cfg.Endpoint.
func NewManifest(cfg ManifestConfig) (*Manifest, error) {
	return newManifest(cfg, &defaultClock{})
}

func newManifest(cfg ManifestConfig, c clock) (*Manifest, error) {
	// Generate client for getSamplingRules and getSamplingTargets API call.
	client, err := newClient(cfg.Endpoint, cfg.HTTPClient)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = glog.New()
	}

	return &Manifest{
		ClientID:       newClientID(),
		rules:          newRuleCache(cfg.Resource, logger, c),
		xrayClient:     client,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger.WithField("Manifest", "Manifest"),
		clock:          c,
	}, nil
}

// newClientID returns 24 random lowercase hex characters.
func newClientID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:12])
}

// Rules returns the rule cache fed by the manifest.
func (m *Manifest) Rules() *RuleCache {
	return m.rules
}

// Expired returns true if the rules have not been successfully refreshed in the last hour.
func (m *Manifest) Expired() bool {
	return m.rules.Expired()
}

// MatchedRule returns the applier of the highest priority rule matching attributes.
func (m *Manifest) MatchedRule(attributes []attribute.KeyValue) *SamplingRuleApplier {
	return m.rules.MatchedRule(attributes)
}

// RefreshRules fetches the sampling rules and replaces the rules of the cache with them.
func (m *Manifest) RefreshRules(ctx context.Context) error {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	rules, err := m.xrayClient.getSamplingRules(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshRules: error occurred while getting sampling rules")
	}

	if rules.SamplingRuleRecords == nil {
		return errors.New("refreshRules: SamplingRuleRecords from GetSamplingRules request is not defined")
	}

	appliers := make([]*SamplingRuleApplier, 0, len(rules.SamplingRuleRecords))
	for _, record := range rules.SamplingRuleRecords {
		if record == nil || record.SamplingRule == nil {
			continue
		}
		appliers = append(appliers, newSamplingRuleApplier(newSamplingRule(record.SamplingRule), m.clock))
	}

	m.rules.UpdateRules(appliers)
	m.logger.Debugf("successfully fetched %d sampling rules", len(appliers))
	return nil
}

// RefreshTargets reports the statistics of every rule and applies the targets X-Ray returns.
// It reports whether the rules must be fetched again out of band and the interval at which
// targets should be polled next.
func (m *Manifest) RefreshTargets(ctx context.Context) (refreshRules bool, nextPollingInterval time.Duration, err error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	statistics := m.rules.CreateSamplingStatisticsDocuments(m.ClientID)

	targets, err := m.xrayClient.getSamplingTargets(ctx, statistics)
	if err != nil {
		return false, 0, errors.Wrap(err, "refreshTargets: error occurred while getting sampling targets")
	}

	if targets.SamplingTargetDocuments == nil {
		return false, 0, errors.New("refreshTargets: SamplingTargetDocuments from SamplingTargets request is not defined")
	}

	m.logger.Debug("successfully fetched sampling targets")

	documents := make(map[string]*SamplingTargetDocument, len(targets.SamplingTargetDocuments))
	for _, t := range targets.SamplingTargetDocuments {
		if t == nil || t.RuleName == "" {
			m.logger.Debug("invalid sampling target: missing rule name")
			continue
		}
		documents[t.RuleName] = t
	}

	var lastRuleModification float64
	if targets.LastRuleModification != nil {
		lastRuleModification = *targets.LastRuleModification
	}

	refreshRules, nextPollingInterval = m.rules.UpdateTargets(documents, lastRuleModification)

	if m.consumeUnprocessedStatistics(targets.UnprocessedStatistics) {
		refreshRules = true
	}
	return refreshRules, nextPollingInterval, nil
}

// consumeUnprocessedStatistics logs the statistics X-Ray could not process and reports
// whether any of them was rejected with a 4xx code, which hints at rules X-Ray no longer knows.
func (m *Manifest) consumeUnprocessedStatistics(unprocessed []*unprocessedStatistic) (refresh bool) {
	for _, s := range unprocessed {
		if s == nil || s.ErrorCode == nil || s.RuleName == nil {
			continue
		}

		var message string
		if s.Message != nil {
			message = *s.Message
		}
		m.logger.Debugf("error occurred updating sampling target for rule %s, code %s, message: %s", *s.RuleName, *s.ErrorCode, message)

		if strings.HasPrefix(*s.ErrorCode, "4") {
			refresh = true
		}
	}
	return refresh
}

func (m *Manifest) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.requestTimeout)
}
