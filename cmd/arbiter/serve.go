package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/config"
	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/evidence/recorder"
	"mercator-hq/arbiter/pkg/evidence/retention"
	"mercator-hq/arbiter/pkg/registry"
	"mercator-hq/arbiter/pkg/server"
	"mercator-hq/arbiter/pkg/simulation"
	"mercator-hq/arbiter/pkg/source"
	"mercator-hq/arbiter/pkg/telemetry/health"
	"mercator-hq/arbiter/pkg/telemetry/logging"
	"mercator-hq/arbiter/pkg/telemetry/metrics"
	"mercator-hq/arbiter/pkg/telemetry/tracing"
)

type serveOptions struct {
	listen      string
	definitions string
	watch       bool
	dryRun      bool
}

func newServeCommand(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the decision API server",
		Long: `Start the HTTP decision API.

Workflows are loaded from the definitions path and, when the registry is
enabled, from the registry's published versions. Only definitions with
status published are executed; drafts run through /v1/simulate. Every
decision is recorded to the evidence store when evidence is enabled.
SIGHUP reloads the configuration file and the definitions.

Examples:
  # Start with defaults
  arbiter serve --definitions workflows/

  # Start with a config file and hot reload
  arbiter serve --config /etc/arbiter/config.yaml --watch

  # Validate config and definitions without starting the server
  arbiter serve --config arbiter.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "override listen address")
	cmd.Flags().StringVar(&opts.definitions, "definitions", "", "override definitions path")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "reload definitions when files change")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "load everything, then exit without serving")
	return cmd
}

// stack holds the components behind the server and closes them in
// reverse order of construction.
type stack struct {
	server    *server.Server
	catalog   *source.Catalog
	reload    func() error
	watcher   *source.Watcher
	scheduler *retention.Scheduler
	closers   []func() error
}

func (s *stack) onClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *stack) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// overrides applies the serve flags, and --log-level, to cfg. They are
// reapplied after every configuration reload.
func (a *app) overrides(opts *serveOptions) func(*config.Config) {
	return func(cfg *config.Config) {
		if a.logLevel != "" {
			cfg.Telemetry.Logging.Level = a.logLevel
		}
		if opts.listen != "" {
			cfg.Server.ListenAddress = opts.listen
		}
		if opts.definitions != "" {
			cfg.Definitions.Path = opts.definitions
		}
		if opts.watch {
			cfg.Definitions.Watch = true
		}
	}
}

func (a *app) runServe(cmd *cobra.Command, opts *serveOptions) error {
	cfg := a.cfg
	override := a.overrides(opts)
	override(cfg)
	config.Install(a.configPath, cfg)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Arbiter v%s\n", Version)
	fmt.Fprintln(out, "✓ Configuration loaded")

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	st, err := a.buildStack(ctx, out)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer func() {
		if err := st.close(); err != nil {
			a.logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	if opts.dryRun {
		fmt.Fprintln(out, "✓ Dry run complete")
		return nil
	}

	if st.watcher != nil {
		go func() {
			if err := st.watcher.Watch(ctx, st.reload); err != nil {
				a.logger.Error("definition watcher stopped", "error", err)
			}
		}()
		fmt.Fprintf(out, "✓ Watching %s for changes\n", cfg.Definitions.Path)
	}
	if st.scheduler != nil {
		if err := st.scheduler.Start(ctx); err != nil {
			return cli.NewConfigError(a.configPath, "evidence.retention.prune_schedule", "invalid schedule", err)
		}
		if next := st.scheduler.NextRun(); next != nil {
			a.logger.Debug("evidence retention scheduled", "next_run", next)
		}
	}

	reload := cli.NotifyReload(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload:
				if err := a.reloadConfig(st, override); err != nil {
					a.logger.Error("configuration reload failed", "error", err)
				}
			}
		}
	}()

	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := st.server.Start(ctx); err != nil {
		return cli.NewCommandError("serve", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// reloadConfig re-reads the configuration file. The log level and the
// definition catalog are refreshed in place; changes to other sections are
// logged and take effect on restart.
func (a *app) reloadConfig(st *stack, override func(*config.Config)) error {
	previous := config.GetConfig()
	cfg, err := config.ReloadConfig(override)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Telemetry.Logging.Level)
	if err != nil {
		return err
	}
	a.level.Set(level)

	if previous != nil {
		sections := []struct {
			name    string
			changed bool
		}{
			{"server", !reflect.DeepEqual(previous.Server, cfg.Server)},
			{"engine", !reflect.DeepEqual(previous.Engine, cfg.Engine)},
			{"definitions", previous.Definitions.Path != cfg.Definitions.Path},
			{"registry", !reflect.DeepEqual(previous.Registry, cfg.Registry)},
			{"evidence", !reflect.DeepEqual(previous.Evidence, cfg.Evidence)},
		}
		for _, s := range sections {
			if s.changed {
				a.logger.Warn("configuration section changed, restart to apply", "section", s.name)
			}
		}
	}

	a.logger.Info("configuration reloaded", "path", a.configPath, "log_level", level.String())
	if st.reload != nil {
		return st.reload()
	}
	return nil
}

// buildStack wires configuration into the server and its dependencies.
func (a *app) buildStack(ctx context.Context, out io.Writer) (st *stack, err error) {
	cfg := a.cfg
	logger := a.logger
	st = &stack{}
	defer func() {
		if err != nil {
			_ = st.close()
		}
	}()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return st, fmt.Errorf("failed to create tracer: %w", err)
	}
	st.onClose(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tracer.Shutdown(shutdownCtx)
	})

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	checker := health.New(cfg.Telemetry.Health.CheckTimeout)

	eng, err := a.newEngine()
	if err != nil {
		return st, err
	}

	st.catalog = source.NewCatalog()
	if path := cfg.Definitions.Path; path != "" {
		src := source.NewFileSource(path, logger).WithDecoder(a.decoder())
		st.reload = func() error {
			result, err := st.catalog.Reload(ctx, src)
			if err != nil {
				collector.RecordCatalogReload(st.catalog.Len(), 0, err)
				return err
			}
			collector.RecordCatalogReload(len(result.Workflows), len(result.Errors), nil)
			return nil
		}
		if err := st.reload(); err != nil {
			return st, fmt.Errorf("failed to load definitions: %w", err)
		}
		checker.Register("definitions", health.CatalogCheck(st.catalog.Len, 1))
		fmt.Fprintf(out, "✓ Definitions loaded (%d workflows)\n", st.catalog.Len())

		if cfg.Definitions.Watch {
			wc := source.DefaultWatcherConfig(path)
			if cfg.Definitions.DebounceInterval > 0 {
				wc.DebounceInterval = cfg.Definitions.DebounceInterval
			}
			st.watcher, err = source.NewWatcher(wc, logger)
			if err != nil {
				return st, fmt.Errorf("failed to create watcher: %w", err)
			}
			st.onClose(st.watcher.Close)
		}
	}

	var reg *registry.Registry
	if cfg.Registry.Enabled {
		reg, err = a.openRegistry()
		if err != nil {
			return st, fmt.Errorf("failed to open registry: %w", err)
		}
		st.onClose(reg.Close)
		if p, ok := reg.Store().(health.Pinger); ok {
			checker.Register("registry", health.PingCheck(p))
		}
		fmt.Fprintf(out, "✓ Registry opened (%s)\n", cfg.Registry.Path)
	}

	var (
		store evidence.Storage
		rec   *recorder.Recorder
	)
	if cfg.Evidence.Enabled {
		store, err = a.openEvidence()
		if err != nil {
			return st, fmt.Errorf("failed to open evidence store: %w", err)
		}
		st.onClose(store.Close)
		if p, ok := store.(health.Pinger); ok {
			checker.Register("evidence", health.PingCheck(p))
		}

		rec, err = recorder.New(store, &recorder.Config{
			Enabled:      true,
			BufferSize:   cfg.Evidence.Recorder.BufferSize,
			WriteTimeout: cfg.Evidence.Recorder.WriteTimeout,
		}, logger)
		if err != nil {
			return st, fmt.Errorf("failed to create recorder: %w", err)
		}
		// Registered after the store so the recorder drains first.
		st.onClose(rec.Close)
		collector.RegisterEvidence(rec)

		if rc := cfg.Evidence.Retention; rc.Days > 0 && rc.PruneSchedule != "" {
			pruner := retention.NewPruner(store, &retention.Config{
				RetentionDays:       rc.Days,
				PruneSchedule:       rc.PruneSchedule,
				ArchiveBeforeDelete: rc.ArchiveBeforeDelete,
				ArchivePath:         rc.ArchivePath,
			}, logger)
			st.scheduler = retention.NewScheduler(pruner)
			st.onClose(func() error { st.scheduler.Stop(); return nil })
		}
		fmt.Fprintf(out, "✓ Evidence store initialized (%s)\n", cfg.Evidence.Backend)
	}

	st.server, err = server.New(&cfg.Server, server.Options{
		Engine:       eng,
		Simulation:   simulationConfig(&cfg.Simulation),
		Catalog:      st.catalog,
		Registry:     reg,
		Recorder:     rec,
		Evidence:     store,
		Metrics:      collector,
		Tracer:       tracer,
		Health:       checker,
		HealthConfig: &cfg.Telemetry.Health,
		Version:      health.NewVersionInfo(Version, GitCommit, BuildDate),
		MetricsPath:  cfg.Telemetry.Metrics.Path,
		Logger:       logger,
	})
	if err != nil {
		return st, err
	}
	return st, nil
}

func simulationConfig(sc *config.SimulationConfig) *simulation.Config {
	return simulation.DefaultConfig().WithWorkers(sc.Workers).WithScoreTolerance(sc.ScoreTolerance)
}
