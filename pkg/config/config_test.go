package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irctrakz/streammon/pkg/logging"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	d, err := cfg.ReporterInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streammon.yaml")
	yml := `
host:
  id: edge-1
  name: edge
monitoring:
  maxStreamsPerApplication: 64
api:
  listenAddr: ":9090"
nats:
  enabled: true
  url: nats://bus:4222
  eventSubject: ome.events
reporter:
  interval: 10s
  format: json
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg := DefaultConfig()
	require.NoError(t, LoadFromFile(path, cfg))

	assert.Equal(t, "edge-1", cfg.Host.ID)
	assert.Equal(t, 64, cfg.Monitoring.MaxStreamsPerApplication)
	assert.True(t, cfg.Monitoring.LogStreamInfoOnDelete, "unset fields keep their defaults")
	assert.Equal(t, ":9090", cfg.API.ListenAddr)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "ome.events", cfg.NATS.EventSubject)
	assert.Equal(t, "json", cfg.Reporter.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streammon.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"prometheus":{"enabled":true,"namespace":"ome","per_stream":true}}`), 0644))

	cfg := DefaultConfig()
	require.NoError(t, LoadFromFile(path, cfg))
	assert.Equal(t, "ome", cfg.Prometheus.Namespace)
	assert.True(t, cfg.Prometheus.PerStream)
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()

	assert.Error(t, LoadFromFile(filepath.Join(dir, "missing.yaml"), cfg))

	txt := filepath.Join(dir, "streammon.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0644))
	err := LoadFromFile(txt, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config file format")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	assert.Error(t, LoadFromFile(bad, cfg))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STREAMMON_HOST_ID", "env-host")
	t.Setenv("STREAMMON_MAX_STREAMS_PER_APP", "8")
	t.Setenv("STREAMMON_LOG_STREAM_INFO_ON_DELETE", "false")
	t.Setenv("STREAMMON_API_MAX_CONNECTIONS", "not-a-number")
	t.Setenv("STREAMMON_NATS_ENABLED", "1")
	t.Setenv("STREAMMON_NATS_REPORT_SUBJECT", "ome.reports")
	t.Setenv("STREAMMON_REPORTER_SHOW_CHILDREN", "true")
	t.Setenv("STREAMMON_PROMETHEUS_PER_STREAM", "true")
	t.Setenv("LOGGING_LEVEL", "warn")
	t.Setenv("LOGGING_MAX_AGE", "30")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, "env-host", cfg.Host.ID)
	assert.Equal(t, 8, cfg.Monitoring.MaxStreamsPerApplication)
	assert.False(t, cfg.Monitoring.LogStreamInfoOnDelete)
	assert.Equal(t, 256, cfg.API.MaxConnections, "unparseable values are ignored")
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "ome.reports", cfg.NATS.ReportSubject)
	assert.True(t, cfg.Reporter.ShowChildren)
	assert.True(t, cfg.Prometheus.PerStream)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 30, cfg.Logging.MaxAge)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative stream cap", func(c *Config) { c.Monitoring.MaxStreamsPerApplication = -1 }, "max streams"},
		{"empty listen addr", func(c *Config) { c.API.ListenAddr = "" }, "listen address"},
		{"disabled API ignores addr", func(c *Config) { c.API.Enabled = false; c.API.ListenAddr = "" }, ""},
		{"bad NATS URL", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "::" }, "NATS URL"},
		{"empty event subject", func(c *Config) { c.NATS.Enabled = true; c.NATS.EventSubject = "" }, "event subject"},
		{"bad interval", func(c *Config) { c.Reporter.Interval = "soon" }, "reporter interval"},
		{"zero interval", func(c *Config) { c.Reporter.Interval = "0s" }, "positive"},
		{"bad report format", func(c *Config) { c.Reporter.Format = "xml" }, "reporter format"},
		{"empty namespace", func(c *Config) { c.Prometheus.Namespace = "" }, "namespace"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Host.ID = "saved"
	cfg.Reporter.ShowChildren = true

	for _, name := range []string{"nested/streammon.yaml", "streammon.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path))

		loaded := DefaultConfig()
		require.NoError(t, LoadFromFile(path, loaded))
		assert.Equal(t, cfg, loaded, name)
	}

	assert.Error(t, cfg.SaveToFile(filepath.Join(dir, "streammon.ini")))
}

func TestApplyLogging(t *testing.T) {
	defer logging.SetLevel(logging.InfoLevel)
	defer logging.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := DefaultConfig()
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	require.NoError(t, cfg.ApplyLogging())

	cfg.Logging.Level = "bogus"
	assert.NoError(t, cfg.ApplyLogging(), "unknown levels fall back to info")
}
