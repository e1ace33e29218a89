// Package config provides configuration management for Arbiter.
//
// Configuration is read from a YAML file, decoded on top of the defaults in
// defaults.go, overridden by ARBITER_* environment variables, and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("arbiter.yaml")
//
// Unknown YAML keys are rejected. Environment variables follow the
// convention ARBITER_SECTION_FIELD:
//
//   - ARBITER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - ARBITER_EVIDENCE_BACKEND overrides evidence.backend
//   - ARBITER_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Validation collects every problem into a ValidationError:
//
//	configuration validation failed with 2 errors:
//	  - evidence.backend: invalid backend "postgres": must be 'memory' or 'sqlite'
//	  - telemetry.tracing.endpoint: tracing endpoint is required when tracing is enabled
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//
//	definitions:
//	  path: "./workflows"
//	  watch: true
//
//	evidence:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/evidence.db"
//	  retention:
//	    days: 365
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// Install and GetConfig hold the configuration of the running server,
// which ReloadConfig refreshes on SIGHUP. Library code takes explicit
// values instead.
package config
