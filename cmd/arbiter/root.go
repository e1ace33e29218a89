package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/engine"
	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/evidence/storage"
	"mercator-hq/arbiter/pkg/model"
	"mercator-hq/arbiter/pkg/registry"
	"mercator-hq/arbiter/pkg/telemetry/logging"
)

// app carries the global flags and the state built from them before a
// subcommand runs.
type app struct {
	configPath string
	logLevel   string
	output     string

	cfg    *config.Config
	logger *slog.Logger
	level  *slog.LevelVar
	format cli.OutputFormat
	stderr io.Writer
}

// Execute runs the root command and exits with the code of its error.
func Execute() {
	cmd := newRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "arbiter",
		Short: "Arbiter - credit decision rule and workflow engine",
		Long: `Arbiter evaluates credit applications against decision workflows.

A workflow is a graph of rule sets, conditions, validations and actions
that ends in approve, decline or review. Arbiter validates workflows,
executes them, runs simulation suites against them, keeps published
versions in a registry, and records an audit trail of every decision.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file path (default: built-in defaults and ARBITER_* variables)")
	flags.StringVar(&a.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text, json, table")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return cli.NewUsageError(cmd.Name(), err)
	})

	root.AddCommand(
		newValidateCommand(a),
		newExecuteCommand(a),
		newEvaluateCommand(a),
		newTestCommand(a),
		newConvertCommand(a),
		newServeCommand(a),
		newRegistryCommand(a),
		newEvidenceCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads the configuration and builds the logger. Logs go to stderr
// so that command output on stdout stays machine-readable.
func (a *app) setup(cmd *cobra.Command) error {
	format, err := cli.ParseOutputFormat(a.output)
	if err != nil {
		return cli.NewUsageError(cmd.Name(), err)
	}
	a.format = format

	cfg, err := config.LoadConfigWithEnvOverrides(a.configPath)
	if err != nil {
		return cli.NewConfigError(a.configPath, "", "failed to load config", err)
	}
	if a.logLevel != "" {
		cfg.Telemetry.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	a.stderr = cmd.ErrOrStderr()
	a.level = new(slog.LevelVar)
	lc := logging.FromConfig(&cfg.Telemetry.Logging, a.stderr)
	lc.LevelVar = a.level
	logger, err := logging.New(lc)
	if err != nil {
		return cli.NewConfigError(a.configPath, "telemetry.logging", "invalid logging settings", err)
	}
	a.logger = logger
	slog.SetDefault(logger)
	return nil
}

// print renders v in the selected output format.
func (a *app) print(cmd *cobra.Command, v any) error {
	return cli.NewFormatter(a.format).FormatTo(cmd.OutOrStdout(), v)
}

func (a *app) newEngine() (*engine.DecisionEngine, error) {
	ec := a.cfg.Engine
	cfg := engine.DefaultConfig().
		WithStepBudgetFactor(ec.StepBudgetFactor).
		WithTrace(ec.EnableTrace).
		WithStrictRequiredFields(ec.StrictRequiredFields).
		WithValidationCacheSize(ec.ValidationCacheSize)
	return engine.NewDecisionEngine(cfg, a.logger)
}

func (a *app) decoder() *codec.Decoder {
	return codec.NewDecoder().WithStrict(a.cfg.Definitions.Strict)
}

// openRegistry opens the SQLite definition registry.
func (a *app) openRegistry() (*registry.Registry, error) {
	store, err := registry.NewSQLiteStore(a.cfg.Registry.Path, a.logger)
	if err != nil {
		return nil, err
	}
	return registry.New(store, a.logger), nil
}

// openEvidence opens the configured evidence backend.
func (a *app) openEvidence() (evidence.Storage, error) {
	ec := a.cfg.Evidence
	switch ec.Backend {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "sqlite":
		return storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         ec.SQLite.Path,
			MaxOpenConns: ec.SQLite.MaxOpenConns,
			MaxIdleConns: ec.SQLite.MaxIdleConns,
			WALMode:      ec.SQLite.WALMode,
			BusyTimeout:  ec.SQLite.BusyTimeout,
		})
	}
	return nil, fmt.Errorf("unsupported evidence backend: %s", ec.Backend)
}

// readApplicant reads applicant data from a JSON or YAML file, or from
// stdin when path is "-".
func readApplicant(cmd *cobra.Command, path string) (model.ApplicantData, error) {
	var (
		data []byte
		err  error
	)
	format := codec.FormatJSON
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		format = codec.DetectFormat(data)
	} else {
		// #nosec G304 - reading a user-supplied data file is the point.
		data, err = os.ReadFile(path)
		if err == nil {
			if f, ferr := codec.FormatFromPath(path); ferr == nil {
				format = f
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read applicant data: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("applicant data is empty")
	}

	var record model.ApplicantData
	switch format {
	case codec.FormatYAML:
		err = yaml.Unmarshal(data, &record)
	default:
		err = json.Unmarshal(data, &record)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse applicant data %s: %w", path, err)
	}
	if record == nil {
		return nil, errors.New("applicant data must be an object")
	}
	return record, nil
}
