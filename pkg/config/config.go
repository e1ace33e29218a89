package config

import "time"

// Config is the root configuration structure for Arbiter.
// It contains all configuration sections for the decision service.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Engine contains decision engine configuration.
	Engine EngineConfig `yaml:"engine"`

	// Simulation contains test-case harness configuration.
	Simulation SimulationConfig `yaml:"simulation"`

	// Definitions controls where workflow definitions are loaded from.
	Definitions DefinitionsConfig `yaml:"definitions"`

	// Registry contains the versioned workflow registry configuration.
	Registry RegistryConfig `yaml:"registry"`

	// Evidence contains decision audit trail configuration.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Telemetry contains logging, metrics, tracing, and health configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address the HTTP server binds to.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next keep-alive request.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes is the maximum size of request headers.
	// Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes is the maximum accepted request body. Larger bodies are
	// rejected with 413.
	// Default: 4MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// EngineConfig contains decision engine configuration.
type EngineConfig struct {
	// StepBudgetFactor bounds workflow traversal to factor × node count steps.
	// Default: 4
	StepBudgetFactor int `yaml:"step_budget_factor"`

	// EnableTrace records a per-rule trace on every result.
	// Default: false
	EnableTrace bool `yaml:"enable_trace"`

	// StrictRequiredFields ends execution in review when a required data
	// field is missing.
	// Default: false
	StrictRequiredFields bool `yaml:"strict_required_fields"`

	// ValidationCacheSize is the number of memoised validation results.
	// Default: 256
	ValidationCacheSize int `yaml:"validation_cache_size"`
}

// SimulationConfig contains test-case harness configuration.
type SimulationConfig struct {
	// Workers is the number of concurrent case evaluators.
	// 0 selects the number of CPUs.
	Workers int `yaml:"workers"`

	// ScoreTolerance is the largest score difference treated as equal.
	// Default: 1e-9
	ScoreTolerance float64 `yaml:"score_tolerance"`
}

// DefinitionsConfig controls the on-disk workflow catalog.
type DefinitionsConfig struct {
	// Path is a definition file or a directory scanned recursively.
	// Default: "./workflows"
	Path string `yaml:"path"`

	// Watch reloads the catalog when files under Path change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events.
	// Default: 200ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Strict refuses to serve a catalog when any definition fails to load.
	// Default: false
	Strict bool `yaml:"strict"`
}

// RegistryConfig contains the versioned workflow registry configuration.
type RegistryConfig struct {
	// Enabled turns on the registry store.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file for the registry.
	// Default: "data/registry.db"
	Path string `yaml:"path"`
}

// EvidenceConfig contains decision audit trail configuration.
type EvidenceConfig struct {
	// Enabled controls whether decisions are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains async recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention policy configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite evidence backend configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains async evidence recorder configuration.
type RecorderConfig struct {
	// BufferSize is the capacity of the write buffer. Records arriving while
	// it is full are dropped.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains evidence retention configuration.
type RetentionConfig struct {
	// Days is how long evidence is kept. 0 keeps it forever.
	// Default: 90
	Days int `yaml:"days"`

	// PruneSchedule is a five-field cron expression. Empty disables
	// scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete exports expiring records to ArchivePath first.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the archive directory.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks applicant identifiers (SSN, account numbers, emails,
	// dates of birth) in log attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "arbiter"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "decisions"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are histogram buckets for execution time in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces sampled when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "arbiter"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the collector connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for build information.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout bounds each component check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
