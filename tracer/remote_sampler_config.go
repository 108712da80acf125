package tracer

import (
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/donetkit/contrib-log/glog"
	"github.com/donetkit/contrib-xray/utils/com_http"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	defaultPollingInterval = 300 * time.Second
	minPollingInterval     = 10 * time.Second
	defaultRequestTimeout  = 5 * time.Second
	defaultProxyEndpoint   = "http://127.0.0.1:2000"
)

type config struct {
	endpoint                     url.URL
	samplingRulesPollingInterval time.Duration
	requestTimeout               time.Duration
	resource                     *resource.Resource
	httpClient                   com_http.HTTPClient
	meterProvider                metric.MeterProvider
	logger                       glog.ILogger
}

// RemoteSamplerOption sets configuration on the sampler.
type RemoteSamplerOption interface {
	apply(*config) *config
}

type optionRemoteSamplerFunc func(*config) *config

func (f optionRemoteSamplerFunc) apply(cfg *config) *config {
	return f(cfg)
}

// WithEndpoint sets custom proxy endpoint.
// If this option is not provided the default endpoint used will be http://127.0.0.1:2000.
func WithEndpoint(endpoint url.URL) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.endpoint = endpoint
		return cfg
	})
}

// WithSamplingRulesPollingInterval sets polling interval for sampling rules.
// If this option is not provided the default samplingRulesPollingInterval used will be 300 seconds.
// Intervals below 10 seconds are replaced by the default.
func WithSamplingRulesPollingInterval(polingInterval time.Duration) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.samplingRulesPollingInterval = polingInterval
		return cfg
	})
}

// WithRequestTimeout bounds each call to the sampling APIs. Defaults to 5 seconds.
func WithRequestTimeout(timeout time.Duration) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.requestTimeout = timeout
		return cfg
	})
}

// WithResource sets the resource rules are matched against, for the service name, the
// service type and the resource ARN. Defaults to resource.Default().
func WithResource(res *resource.Resource) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.resource = res
		return cfg
	})
}

// WithHTTPClient sets the client used to call the sampling APIs.
func WithHTTPClient(client com_http.HTTPClient) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.httpClient = client
		return cfg
	})
}

// WithMeterProvider sets the provider of the poll counters. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.meterProvider = mp
		return cfg
	})
}

// WithLogger sets custom logging for remote sampling implementation.
// If this option is not provided the default logger used will be glog.New().
func WithLogger(l glog.ILogger) RemoteSamplerOption {
	return optionRemoteSamplerFunc(func(cfg *config) *config {
		cfg.logger = l
		return cfg
	})
}

func newConfig(opts ...RemoteSamplerOption) (*config, error) {
	defaultEndpoint, err := url.Parse(defaultProxyEndpoint)
	if err != nil {
		return nil, err
	}

	cfg := &config{
		endpoint:                     *defaultEndpoint,
		samplingRulesPollingInterval: defaultPollingInterval,
		requestTimeout:               defaultRequestTimeout,
	}

	for _, option := range opts {
		option.apply(cfg)
	}

	if math.Signbit(float64(cfg.samplingRulesPollingInterval)) {
		return nil, fmt.Errorf("config validation error: samplingRulesPollingInterval should be positive number")
	}
	if cfg.endpoint.Host == "" {
		return nil, fmt.Errorf("config validation error: endpoint %q has no host", cfg.endpoint.String())
	}

	if cfg.logger == nil {
		cfg.logger = glog.New()
	}
	if cfg.resource == nil {
		cfg.resource = resource.Default()
	}
	if cfg.meterProvider == nil {
		cfg.meterProvider = global.MeterProvider()
	}
	if cfg.httpClient == nil {
		cfg.httpClient = com_http.DefaultHTTPClient()
	}

	if cfg.samplingRulesPollingInterval < minPollingInterval {
		cfg.logger.WithField("RemoteSampler", "RemoteSampler").Infof(
			"samplingRulesPollingInterval %s is below %s, defaulting to %s",
			cfg.samplingRulesPollingInterval, minPollingInterval, defaultPollingInterval)
		cfg.samplingRulesPollingInterval = defaultPollingInterval
	}

	return cfg, nil
}
