package tracer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
)

const testConfigFile = `
endpoint: http://xray-proxy:2000
polling_interval: 60
request_timeout: 2
resource:
  service.name: checkout
  cloud.platform: aws_ecs
`

func TestParseConfig(t *testing.T) {
	opts, err := ParseConfig([]byte(testConfigFile))
	require.NoError(t, err)

	cfg, err := newConfig(opts...)
	require.NoError(t, err)

	assert.Equal(t, "http://xray-proxy:2000", cfg.endpoint.String())
	assert.Equal(t, time.Minute, cfg.samplingRulesPollingInterval)
	assert.Equal(t, 2*time.Second, cfg.requestTimeout)

	v, ok := cfg.resource.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "checkout", v.AsString())
	v, ok = cfg.resource.Set().Value(semconv.CloudPlatformKey)
	require.True(t, ok)
	assert.Equal(t, "aws_ecs", v.AsString())
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	opts, err := ParseConfig([]byte("request_timeout: 1\n"))
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	cfg, err := newConfig(opts...)
	require.NoError(t, err)
	assert.Equal(t, defaultProxyEndpoint, cfg.endpoint.String())
	assert.Equal(t, defaultPollingInterval, cfg.samplingRulesPollingInterval)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("endpoint: [not, a, string]"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("endpoint: \"http://[::1\""))
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xray.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigFile), 0o600))

	opts, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
