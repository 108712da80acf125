package tracer

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML representation of the remote sampler configuration:
//
//	endpoint: http://127.0.0.1:2000
//	polling_interval: 300
//	request_timeout: 5
//	resource:
//	  service.name: checkout
//	  cloud.platform: aws_ecs
type FileConfig struct {
	// Endpoint of the X-Ray proxy.
	Endpoint string `yaml:"endpoint"`

	// PollingInterval of the sampling rules, in seconds.
	PollingInterval int `yaml:"polling_interval"`

	// RequestTimeout of each sampling API call, in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// Resource attributes the rules are matched against.
	Resource map[string]string `yaml:"resource"`
}

// LoadConfigFile reads the YAML file at path and returns the options it describes.
func LoadConfigFile(path string) ([]RemoteSamplerOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML configuration and returns the options it describes. Settings
// absent from the document keep their defaults.
func ParseConfig(data []byte) ([]RemoteSamplerOption, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return fc.Options()
}

// Options converts the file configuration into sampler options.
func (fc *FileConfig) Options() ([]RemoteSamplerOption, error) {
	var opts []RemoteSamplerOption

	if fc.Endpoint != "" {
		endpoint, err := url.Parse(fc.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("config validation error: invalid endpoint: %w", err)
		}
		opts = append(opts, WithEndpoint(*endpoint))
	}

	if fc.PollingInterval != 0 {
		opts = append(opts, WithSamplingRulesPollingInterval(time.Duration(fc.PollingInterval)*time.Second))
	}

	if fc.RequestTimeout != 0 {
		opts = append(opts, WithRequestTimeout(time.Duration(fc.RequestTimeout)*time.Second))
	}

	if len(fc.Resource) > 0 {
		attrs := make([]attribute.KeyValue, 0, len(fc.Resource))
		for k, v := range fc.Resource {
			attrs = append(attrs, attribute.String(k, v))
		}
		opts = append(opts, WithResource(resource.NewSchemaless(attrs...)))
	}

	return opts, nil
}
