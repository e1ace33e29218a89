package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbiter.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if !cfg.Evidence.Enabled || !cfg.Evidence.SQLite.WALMode || !cfg.Telemetry.Logging.RedactPII {
		t.Error("boolean defaults that should be true are false")
	}
	if cfg.Evidence.Retention.Days != DefaultEvidenceRetentionDays {
		t.Errorf("Retention.Days = %d", cfg.Evidence.Retention.Days)
	}
	if cfg.Engine.StepBudgetFactor != 4 {
		t.Errorf("StepBudgetFactor = %d", cfg.Engine.StepBudgetFactor)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 5s
engine:
  step_budget_factor: 8
evidence:
  backend: memory
  retention:
    days: 0
telemetry:
  logging:
    redact_pii: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("omitted write_timeout = %v, want default", cfg.Server.WriteTimeout)
	}
	if cfg.Engine.StepBudgetFactor != 8 {
		t.Errorf("StepBudgetFactor = %d", cfg.Engine.StepBudgetFactor)
	}
	if cfg.Evidence.Backend != "memory" || cfg.Evidence.Retention.Days != 0 {
		t.Errorf("evidence = %+v", cfg.Evidence)
	}
	if !cfg.Evidence.Enabled {
		t.Error("omitted evidence.enabled should keep its default")
	}
	if cfg.Telemetry.Logging.RedactPII {
		t.Error("explicit redact_pii: false was ignored")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "server:\n  listen_adress: x\n", "listen_adress"},
		{"bad yaml", "server: [", "parse"},
		{"invalid backend", "evidence:\n  backend: postgres\n", "evidence.backend"},
		{"bad cron", "evidence:\n  retention:\n    prune_schedule: \"every day\"\n", "prune_schedule"},
		{"bad level", "telemetry:\n  logging:\n    level: trace\n", "telemetry.logging.level"},
		{"tracing without endpoint", "telemetry:\n  tracing:\n    enabled: true\n", "telemetry.tracing.endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig(missing) expected error")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.ListenAddress = "no-port"
	cfg.Engine.StepBudgetFactor = 0
	cfg.Evidence.Recorder.BufferSize = 0

	err := Validate(cfg)
	var vErr ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Validate() error = %v, want ValidationError", err)
	}
	if len(vErr.Errors) != 3 {
		t.Fatalf("got %d field errors, want 3: %v", len(vErr.Errors), vErr)
	}
	if !strings.Contains(err.Error(), "with 3 errors") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestValidate_DisabledEvidenceSkipsBackendChecks(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Evidence.Enabled = false
	cfg.Evidence.Backend = "postgres"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:7000\"\n")

	t.Setenv("ARBITER_SERVER_LISTEN_ADDRESS", "0.0.0.0:8181")
	t.Setenv("ARBITER_EVIDENCE_BACKEND", "memory")
	t.Setenv("ARBITER_ENGINE_ENABLE_TRACE", "true")
	t.Setenv("ARBITER_TELEMETRY_TRACING_SAMPLE_RATIO", "0.5")
	t.Setenv("ARBITER_SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:8181" {
		t.Errorf("ListenAddress = %q, env should win", cfg.Server.ListenAddress)
	}
	if cfg.Evidence.Backend != "memory" || !cfg.Engine.EnableTrace {
		t.Errorf("overrides not applied: backend %q trace %v", cfg.Evidence.Backend, cfg.Engine.EnableTrace)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.5 || cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("ratio %v shutdown %v", cfg.Telemetry.Tracing.SampleRatio, cfg.Server.ShutdownTimeout)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("ARBITER_DEFINITIONS_PATH", "/srv/workflows")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Definitions.Path != "/srv/workflows" {
		t.Errorf("Definitions.Path = %q", cfg.Definitions.Path)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValue(t *testing.T) {
	t.Setenv("ARBITER_ENGINE_STEP_BUDGET_FACTOR", "lots")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "ARBITER_ENGINE_STEP_BUDGET_FACTOR") {
		t.Errorf("error = %v, want the offending variable named", err)
	}
}

func TestEnvVariables(t *testing.T) {
	names := EnvVariables()
	if len(names) != len(envBindings) {
		t.Fatalf("got %d names", len(names))
	}
	for _, n := range names {
		if !strings.HasPrefix(n, EnvPrefix) {
			t.Errorf("%q lacks prefix", n)
		}
	}
}

func TestReloadConfig(t *testing.T) {
	path := writeConfig(t, "engine:\n  step_budget_factor: 6\n")
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatal(err)
	}
	Install(path, cfg)
	t.Cleanup(func() { Install("", nil) })

	if got := GetConfig().Engine.StepBudgetFactor; got != 6 {
		t.Errorf("StepBudgetFactor = %d", got)
	}

	if err := os.WriteFile(path, []byte("engine:\n  step_budget_factor: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	listen := func(c *Config) { c.Server.ListenAddress = "127.0.0.1:9999" }
	reloaded, err := ReloadConfig(listen)
	if err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if reloaded.Engine.StepBudgetFactor != 2 || GetConfig() != reloaded {
		t.Error("reload did not replace the configuration")
	}
	if GetConfig().Server.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("override not applied: %q", GetConfig().Server.ListenAddress)
	}

	if err := os.WriteFile(path, []byte("engine:\n  step_budget_factor: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReloadConfig(); err == nil {
		t.Error("ReloadConfig() with invalid file expected error")
	}
	if GetConfig() != reloaded {
		t.Error("failed reload replaced the configuration")
	}

	Install("", nil)
	if _, err := ReloadConfig(); err == nil {
		t.Error("ReloadConfig() before Install expected error")
	}
}
