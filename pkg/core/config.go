package core

// HostConfig identifies this process in reports.
type HostConfig struct {
	// ID is the host id. If empty, a random UUID is generated at startup.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable host name.
	Name string `json:"name" yaml:"name"`
}

// MonitoringConfig contains limits for the aggregation tree.
type MonitoringConfig struct {
	// MaxStreamsPerApplication caps live streams per application (0 = unlimited).
	// Stream creation beyond the cap fails with an allocation error.
	MaxStreamsPerApplication int `json:"max_streams_per_application" yaml:"maxStreamsPerApplication"`

	// LogStreamInfoOnDelete logs the final info record of a deleted stream.
	LogStreamInfoOnDelete bool `json:"log_stream_info_on_delete" yaml:"logStreamInfoOnDelete"`
}

// APIConfig contains configuration for the HTTP API.
type APIConfig struct {
	// Enabled turns the HTTP API on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ListenAddr is the address to listen on (e.g. ":8080").
	ListenAddr string `json:"listen_addr" yaml:"listenAddr"`

	// MaxConnections caps concurrent HTTP connections (0 = unlimited).
	MaxConnections int `json:"max_connections" yaml:"maxConnections"`
}

// NATSConfig contains configuration for the NATS event bus.
type NATSConfig struct {
	// Enabled turns the NATS subscriber and publisher on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// URL is the NATS server URL.
	URL string `json:"url" yaml:"url"`

	// EventSubject is the subject engine lifecycle and counter events arrive on.
	EventSubject string `json:"event_subject" yaml:"eventSubject"`

	// ReportSubject is the subject info records are published to.
	// Empty disables publishing.
	ReportSubject string `json:"report_subject" yaml:"reportSubject"`
}

// ReporterConfig contains configuration for the periodic metrics reporter.
type ReporterConfig struct {
	// Enabled turns the periodic reporter on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Interval is the reporting interval as a Go duration (e.g. "30s").
	Interval string `json:"interval" yaml:"interval"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`

	// ShowChildren includes applications and streams in each report.
	ShowChildren bool `json:"show_children" yaml:"showChildren"`
}

// PrometheusConfig contains configuration for the Prometheus exporter.
type PrometheusConfig struct {
	// Enabled serves /metrics on the HTTP API.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Namespace prefixes every exported metric name.
	Namespace string `json:"namespace" yaml:"namespace"`

	// PerStream exports per-stream series in addition to host and application series.
	PerStream bool `json:"per_stream" yaml:"perStream"`
}
