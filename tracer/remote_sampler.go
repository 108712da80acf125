package tracer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/tracer/internal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/instrument/syncint64"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	instrumentationName = "github.com/donetkit/contrib-xray/tracer"

	// maxRulesPollingJitter and maxTargetsPollingJitter spread the polls of many processes.
	maxRulesPollingJitter   = 5 * time.Second
	maxTargetsPollingJitter = 100 * time.Millisecond
)

var (
	outcomeKey     = attribute.Key("outcome")
	outcomeSuccess = outcomeKey.String("success")
	outcomeFailure = outcomeKey.String("failure")
)

// remoteSampler is a sampler for AWS X-Ray which polls sampling rules and sampling targets
// to make a sampling decision based on rules set by users on AWS X-Ray console.
type remoteSampler struct {
	// targetsPollingInterval is the interval in nanoseconds requested by the last targets
	// response. Kept first for 64-bit alignment of atomic access.
	targetsPollingInterval int64

	// manifest is the list of known centralized sampling rules.
	manifest *internal.Manifest

	fallbackSampler *internal.FallbackSampler

	rulesPoller   *poller
	targetsPoller *poller

	rulesPollingInterval time.Duration
	rulesPollingJitter   time.Duration

	targetsPollingJitter time.Duration

	rulesPolls   syncint64.Counter
	targetsPolls syncint64.Counter

	endpoint string

	// logger for logging.
	logger glog.ILoggerEntry
}

// Compile time assertion that remoteSampler implements the Sampler interface.
var _ sdktrace.Sampler = (*remoteSampler)(nil)

// NewRemoteSampler returns a sampler which decides to sample a given request or not
// based on the sampling rules set by users on AWS X-Ray console. Sampler also periodically polls
// sampling rules and sampling targets until ctx is done.
//
// The returned sampler respects the sampling decision of the parent span and only applies the
// rules to root spans.
func NewRemoteSampler(ctx context.Context, opts ...RemoteSamplerOption) (sdktrace.Sampler, error) {
	rs, err := newRemoteSampler(opts...)
	if err != nil {
		return nil, err
	}

	rs.start(ctx)

	return sdktrace.ParentBased(rs), nil
}

func newRemoteSampler(opts ...RemoteSamplerOption) (*remoteSampler, error) {
	// Create new config based on options or set to default values.
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	// create manifest with config
	m, err := internal.NewManifest(internal.ManifestConfig{
		Endpoint:       cfg.endpoint,
		HTTPClient:     cfg.httpClient,
		RequestTimeout: cfg.requestTimeout,
		Resource:       cfg.resource,
		Logger:         cfg.logger,
	})
	if err != nil {
		return nil, err
	}

	meter := cfg.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(Version()))
	rulesPolls, err := meter.SyncInt64().Counter("xray.sampler.rules.polls",
		instrument.WithDescription("Number of GetSamplingRules polls by outcome"))
	if err != nil {
		return nil, err
	}
	targetsPolls, err := meter.SyncInt64().Counter("xray.sampler.targets.polls",
		instrument.WithDescription("Number of SamplingTargets polls by outcome"))
	if err != nil {
		return nil, err
	}

	rs := &remoteSampler{
		manifest:               m,
		fallbackSampler:        internal.NewFallbackSampler(),
		rulesPollingInterval:   cfg.samplingRulesPollingInterval,
		rulesPollingJitter:     randomJitter(maxRulesPollingJitter),
		targetsPollingInterval: int64(internal.DefaultTargetPollingInterval),
		targetsPollingJitter:   randomJitter(maxTargetsPollingJitter),
		rulesPolls:             rulesPolls,
		targetsPolls:           targetsPolls,
		endpoint:               cfg.endpoint.String(),
		logger:                 cfg.logger.WithField("RemoteSampler", "RemoteSampler"),
	}

	rs.rulesPoller = newPoller(true, rs.nextRulesPoll, rs.refreshRules)
	rs.targetsPoller = newPoller(false, rs.nextTargetsPoll, rs.refreshTargets)

	return rs, nil
}

// ShouldSample matches span attributes with retrieved sampling rules and returns a sampling result.
// If the sampling parameters do not match or the manifest is expired then the fallback sampler is used.
func (rs *remoteSampler) ShouldSample(parameters sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if rs.manifest.Expired() {
		rs.logger.Debug("rule cache is expired, so using fallback sampling strategy")
		return rs.fallbackSampler.ShouldSample(parameters)
	}

	if applier := rs.manifest.MatchedRule(parameters.Attributes); applier != nil {
		return applier.ShouldSample(parameters)
	}

	rs.logger.Debug("using fallback sampler as no rule match was found, this is likely due to a bug since the default rule should always match")
	return rs.fallbackSampler.ShouldSample(parameters)
}

// Description returns description of the sampler being used.
func (rs *remoteSampler) Description() string {
	return fmt.Sprintf("XRayRemoteSampler{endpoint=%s, rulesPollingInterval=%s}", rs.endpoint, rs.rulesPollingInterval)
}

// start starts the rules poller, which fetches the rules right away, and the targets poller.
func (rs *remoteSampler) start(ctx context.Context) {
	rs.rulesPoller.start(ctx)
	rs.targetsPoller.start(ctx)
}

// shutdown stops both pollers and waits for them to exit. Samplers built by NewRemoteSampler
// are stopped by cancelling the context given to it instead; the pollers then exit on their own.
func (rs *remoteSampler) shutdown() {
	rs.targetsPoller.stop()
	rs.rulesPoller.stop()
}

func (rs *remoteSampler) nextRulesPoll() time.Duration {
	return rs.rulesPollingInterval + rs.rulesPollingJitter
}

func (rs *remoteSampler) nextTargetsPoll() time.Duration {
	return time.Duration(atomic.LoadInt64(&rs.targetsPollingInterval)) + rs.targetsPollingJitter
}

// refreshRules refreshes the sampling rules in manifest retrieved via getSamplingRules API.
func (rs *remoteSampler) refreshRules(ctx context.Context) {
	if err := rs.manifest.RefreshRules(ctx); err != nil {
		rs.rulesPolls.Add(ctx, 1, outcomeFailure)
		rs.logger.Errorf("error occurred while refreshing sampling rules: %v", err)
		return
	}
	rs.rulesPolls.Add(ctx, 1, outcomeSuccess)
}

// refreshTargets reports statistics and refreshes the sampling targets in manifest retrieved via
// getSamplingTargets API. It adopts the polling interval X-Ray asks for, and restarts the rules
// poller when X-Ray signals that the rules changed.
func (rs *remoteSampler) refreshTargets(ctx context.Context) {
	refreshRules, interval, err := rs.manifest.RefreshTargets(ctx)
	if err != nil {
		rs.targetsPolls.Add(ctx, 1, outcomeFailure)
		rs.logger.Debugf("error occurred while refreshing sampling targets: %v", err)
		return
	}
	rs.targetsPolls.Add(ctx, 1, outcomeSuccess)

	atomic.StoreInt64(&rs.targetsPollingInterval, int64(interval))

	if refreshRules {
		rs.logger.Debug("performing out-of-band sampling rule polling to fetch updated rules")
		rs.rulesPoller.restart()
	}
}
