// Package config provides configuration handling for the stream monitor.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/irctrakz/streammon/pkg/core"
	"github.com/irctrakz/streammon/pkg/logging"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the complete monitor configuration.
type Config struct {
	// Host identifies this process.
	Host core.HostConfig `json:"host" yaml:"host"`

	// Monitoring contains limits for the aggregation tree.
	Monitoring core.MonitoringConfig `json:"monitoring" yaml:"monitoring"`

	// API contains the HTTP API configuration.
	API core.APIConfig `json:"api" yaml:"api"`

	// NATS contains the event bus configuration.
	NATS core.NATSConfig `json:"nats" yaml:"nats"`

	// Reporter contains the periodic reporter configuration.
	Reporter core.ReporterConfig `json:"reporter" yaml:"reporter"`

	// Prometheus contains the exporter configuration.
	Prometheus core.PrometheusConfig `json:"prometheus" yaml:"prometheus"`

	// Logging contains the logging configuration.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig contains configuration for logging.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`

	// File is the log file path.
	File string `json:"file" yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `json:"maxBackups" yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Host: core.HostConfig{
			ID:   "",
			Name: "streammon",
		},
		Monitoring: core.MonitoringConfig{
			MaxStreamsPerApplication: 0,
			LogStreamInfoOnDelete:    true,
		},
		API: core.APIConfig{
			Enabled:        true,
			ListenAddr:     ":8080",
			MaxConnections: 256,
		},
		NATS: core.NATSConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			EventSubject:  "streammon.events",
			ReportSubject: "",
		},
		Reporter: core.ReporterConfig{
			Enabled:      true,
			Interval:     "30s",
			Format:       "text",
			ShowChildren: false,
		},
		Prometheus: core.PrometheusConfig{
			Enabled:   true,
			Namespace: "streammon",
			PerStream: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromFile loads configuration from a file.
func LoadFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine file format based on extension
	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(config *Config) {
	// Host
	if val := os.Getenv("STREAMMON_HOST_ID"); val != "" {
		config.Host.ID = val
	}
	if val := os.Getenv("STREAMMON_HOST_NAME"); val != "" {
		config.Host.Name = val
	}

	// Monitoring
	if val := os.Getenv("STREAMMON_MAX_STREAMS_PER_APP"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Monitoring.MaxStreamsPerApplication = n
		}
	}
	if val := os.Getenv("STREAMMON_LOG_STREAM_INFO_ON_DELETE"); val != "" {
		config.Monitoring.LogStreamInfoOnDelete = parseBool(val)
	}

	// API
	if val := os.Getenv("STREAMMON_API_ENABLED"); val != "" {
		config.API.Enabled = parseBool(val)
	}
	if val := os.Getenv("STREAMMON_API_LISTEN_ADDR"); val != "" {
		config.API.ListenAddr = val
	}
	if val := os.Getenv("STREAMMON_API_MAX_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.API.MaxConnections = n
		}
	}

	// NATS
	if val := os.Getenv("STREAMMON_NATS_ENABLED"); val != "" {
		config.NATS.Enabled = parseBool(val)
	}
	if val := os.Getenv("STREAMMON_NATS_URL"); val != "" {
		config.NATS.URL = val
	}
	if val := os.Getenv("STREAMMON_NATS_EVENT_SUBJECT"); val != "" {
		config.NATS.EventSubject = val
	}
	if val := os.Getenv("STREAMMON_NATS_REPORT_SUBJECT"); val != "" {
		config.NATS.ReportSubject = val
	}

	// Reporter
	if val := os.Getenv("STREAMMON_REPORTER_ENABLED"); val != "" {
		config.Reporter.Enabled = parseBool(val)
	}
	if val := os.Getenv("STREAMMON_REPORTER_INTERVAL"); val != "" {
		config.Reporter.Interval = val
	}
	if val := os.Getenv("STREAMMON_REPORTER_FORMAT"); val != "" {
		config.Reporter.Format = val
	}
	if val := os.Getenv("STREAMMON_REPORTER_SHOW_CHILDREN"); val != "" {
		config.Reporter.ShowChildren = parseBool(val)
	}

	// Prometheus
	if val := os.Getenv("STREAMMON_PROMETHEUS_ENABLED"); val != "" {
		config.Prometheus.Enabled = parseBool(val)
	}
	if val := os.Getenv("STREAMMON_PROMETHEUS_NAMESPACE"); val != "" {
		config.Prometheus.Namespace = val
	}
	if val := os.Getenv("STREAMMON_PROMETHEUS_PER_STREAM"); val != "" {
		config.Prometheus.PerStream = parseBool(val)
	}

	// Logging config
	if val := os.Getenv("LOGGING_LEVEL"); val != "" {
		config.Logging.Level = val
	}
	if val := os.Getenv("LOGGING_FORMAT"); val != "" {
		config.Logging.Format = val
	}
	if val := os.Getenv("LOGGING_FILE"); val != "" {
		config.Logging.File = val
	}
	if val := os.Getenv("LOGGING_MAX_SIZE"); val != "" {
		if maxSize, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxSize = maxSize
		}
	}
	if val := os.Getenv("LOGGING_MAX_BACKUPS"); val != "" {
		if maxBackups, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxBackups = maxBackups
		}
	}
	if val := os.Getenv("LOGGING_MAX_AGE"); val != "" {
		if maxAge, err := strconv.Atoi(val); err == nil {
			config.Logging.MaxAge = maxAge
		}
	}
}

func parseBool(val string) bool {
	return val == "true" || val == "1"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Monitoring.MaxStreamsPerApplication < 0 {
		return fmt.Errorf("invalid max streams per application: %d", c.Monitoring.MaxStreamsPerApplication)
	}

	if c.API.Enabled && c.API.ListenAddr == "" {
		return fmt.Errorf("API listen address cannot be empty")
	}
	if c.API.MaxConnections < 0 {
		return fmt.Errorf("invalid API max connections: %d", c.API.MaxConnections)
	}

	if c.NATS.Enabled {
		u, err := url.Parse(c.NATS.URL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid NATS URL: %s", c.NATS.URL)
		}
		if c.NATS.EventSubject == "" {
			return fmt.Errorf("NATS event subject cannot be empty")
		}
	}

	if c.Reporter.Enabled {
		if _, err := c.ReporterInterval(); err != nil {
			return err
		}
	}
	switch c.Reporter.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid reporter format: %s", c.Reporter.Format)
	}

	if c.Prometheus.Enabled && c.Prometheus.Namespace == "" {
		return fmt.Errorf("prometheus namespace cannot be empty")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}

	return nil
}

// ReporterInterval parses the reporter interval.
func (c *Config) ReporterInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Reporter.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid reporter interval %q: %w", c.Reporter.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("reporter interval must be positive: %s", c.Reporter.Interval)
	}
	return d, nil
}

// ApplyLogging applies the logging configuration.
func (c *Config) ApplyLogging() error {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.InfoLevel
	}
	logging.SetLevel(level)

	if c.Logging.Format == "json" {
		logging.SetFormatter(&logrus.JSONFormatter{})
	}

	if c.Logging.File != "" {
		err := logging.EnableFileLogging(
			filepath.Dir(c.Logging.File),
			filepath.Base(c.Logging.File),
			c.Logging.MaxSize,
			c.Logging.MaxBackups,
			c.Logging.MaxAge,
		)
		if err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}

	return nil
}

// SaveToFile saves the configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch {
	case strings.HasSuffix(path, ".json"):
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
