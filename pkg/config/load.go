package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "ARBITER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Keys absent from the file keep their defaults. Unknown keys are rejected
// so that typos surface as errors instead of silently falling back.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. An empty path starts from the defaults.
// Environment variables follow the naming convention ARBITER_SECTION_FIELD
// (e.g., ARBITER_SERVER_LISTEN_ADDRESS) and always take precedence over the
// file.
//
// The loading sequence is:
// 1. Defaults
// 2. YAML file
// 3. Environment variable overrides
// 4. Validation
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = NewDefaultConfig()
	} else {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, readErr)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name string
	set  func(cfg *Config, val string) error
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		*field(cfg) = val
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func floatVar(field func(*Config) *float64) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		*field(cfg) = f
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

var envBindings = []envBinding{
	// Server overrides
	{"SERVER_LISTEN_ADDRESS", stringVar(func(c *Config) *string { return &c.Server.ListenAddress })},
	{"SERVER_READ_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ReadTimeout })},
	{"SERVER_WRITE_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.WriteTimeout })},
	{"SERVER_SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},

	// Engine overrides
	{"ENGINE_STEP_BUDGET_FACTOR", intVar(func(c *Config) *int { return &c.Engine.StepBudgetFactor })},
	{"ENGINE_ENABLE_TRACE", boolVar(func(c *Config) *bool { return &c.Engine.EnableTrace })},
	{"ENGINE_STRICT_REQUIRED_FIELDS", boolVar(func(c *Config) *bool { return &c.Engine.StrictRequiredFields })},
	{"SIMULATION_WORKERS", intVar(func(c *Config) *int { return &c.Simulation.Workers })},

	// Definition overrides
	{"DEFINITIONS_PATH", stringVar(func(c *Config) *string { return &c.Definitions.Path })},
	{"DEFINITIONS_WATCH", boolVar(func(c *Config) *bool { return &c.Definitions.Watch })},
	{"DEFINITIONS_STRICT", boolVar(func(c *Config) *bool { return &c.Definitions.Strict })},
	{"REGISTRY_ENABLED", boolVar(func(c *Config) *bool { return &c.Registry.Enabled })},
	{"REGISTRY_PATH", stringVar(func(c *Config) *string { return &c.Registry.Path })},

	// Evidence overrides
	{"EVIDENCE_ENABLED", boolVar(func(c *Config) *bool { return &c.Evidence.Enabled })},
	{"EVIDENCE_BACKEND", stringVar(func(c *Config) *string { return &c.Evidence.Backend })},
	{"EVIDENCE_SQLITE_PATH", stringVar(func(c *Config) *string { return &c.Evidence.SQLite.Path })},
	{"EVIDENCE_RECORDER_BUFFER_SIZE", intVar(func(c *Config) *int { return &c.Evidence.Recorder.BufferSize })},
	{"EVIDENCE_RETENTION_DAYS", intVar(func(c *Config) *int { return &c.Evidence.Retention.Days })},
	{"EVIDENCE_RETENTION_PRUNE_SCHEDULE", stringVar(func(c *Config) *string { return &c.Evidence.Retention.PruneSchedule })},

	// Telemetry overrides
	{"TELEMETRY_LOGGING_LEVEL", stringVar(func(c *Config) *string { return &c.Telemetry.Logging.Level })},
	{"TELEMETRY_LOGGING_FORMAT", stringVar(func(c *Config) *string { return &c.Telemetry.Logging.Format })},
	{"TELEMETRY_LOGGING_REDACT_PII", boolVar(func(c *Config) *bool { return &c.Telemetry.Logging.RedactPII })},
	{"TELEMETRY_METRICS_ENABLED", boolVar(func(c *Config) *bool { return &c.Telemetry.Metrics.Enabled })},
	{"TELEMETRY_TRACING_ENABLED", boolVar(func(c *Config) *bool { return &c.Telemetry.Tracing.Enabled })},
	{"TELEMETRY_TRACING_ENDPOINT", stringVar(func(c *Config) *string { return &c.Telemetry.Tracing.Endpoint })},
	{"TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(func(c *Config) *float64 { return &c.Telemetry.Tracing.SampleRatio })},
}

// applyEnvOverrides applies ARBITER_* variables to cfg. A value that does
// not parse is reported rather than ignored.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []FieldError
	for _, b := range envBindings {
		val, ok := lookup(EnvPrefix + b.name)
		if !ok || val == "" {
			continue
		}
		if err := b.set(cfg, val); err != nil {
			errs = append(errs, FieldError{
				Field:   EnvPrefix + b.name,
				Message: fmt.Sprintf("invalid value %q: %v", val, err),
			})
		}
	}
	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

// EnvVariables lists every supported override, for help output.
func EnvVariables() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = EnvPrefix + strings.ToUpper(b.name)
	}
	return names
}
