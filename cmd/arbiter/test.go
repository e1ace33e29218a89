package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/simulation"
)

type testOptions struct {
	workers   int
	tolerance float64
	progress  bool
}

func newTestCommand(a *app) *cobra.Command {
	opts := &testOptions{}
	cmd := &cobra.Command{
		Use:   "test <suite.yaml>...",
		Short: "Run simulation suites",
		Long: `Run simulation suites against workflows or rule sets.

A suite names the workflow or rules file it targets (relative to the
suite file) and lists test cases with input data and expected output.
Only the expected fields that are set are compared; flags and required
documents compare as sets.

Example suite:
  name: personal loan
  workflow: ../workflows/personal-loan.yaml
  cases:
    - id: prime
      inputData: {credit_score: 760, income: 85000}
      expectedOutput: {decision: approve}

Examples:
  arbiter test suites/personal-loan.yaml
  arbiter test suites/*.yaml --workers 8 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTest(cmd, args, opts)
		},
	}
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent test cases (default from config)")
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", 0, "score comparison tolerance (default from config)")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show progress on stderr")
	return cmd
}

type suiteOutput struct {
	Suite  string             `json:"suite"`
	Path   string             `json:"path"`
	Report *simulation.Report `json:"report"`
}

type testOutput struct {
	Suites []suiteOutput `json:"suites"`
}

func (o *testOutput) ok() bool {
	for _, s := range o.Suites {
		if !s.Report.OK() {
			return false
		}
	}
	return true
}

func (o *testOutput) WriteText(w io.Writer) error {
	for _, s := range o.Suites {
		fmt.Fprintf(w, "Suite: %s (%s)\n", s.Suite, s.Path)
		for _, r := range s.Report.Results {
			label := r.CaseID
			if r.Name != "" {
				label = fmt.Sprintf("%s %s", r.CaseID, r.Name)
			}
			switch r.Status {
			case simulation.StatusPassed:
				fmt.Fprintf(w, "  ✓ %s (%.2fms)\n", label, r.DurationMs)
			case simulation.StatusFailed:
				fmt.Fprintf(w, "  ✗ %s\n", label)
				for _, d := range r.Differences {
					fmt.Fprintf(w, "      %s: expected %v, got %v\n", d.Field, d.Expected, d.Actual)
				}
			default:
				fmt.Fprintf(w, "  ! %s: %s\n", label, r.Error)
			}
		}
		st := s.Report.Stats
		fmt.Fprintf(w, "  %d passed, %d failed, %d errored of %d (%.1f%%) in %.2fms\n\n",
			st.Passed, st.Failed, st.Errored, st.Total, st.PassRate, st.ElapsedMs)
	}
	return nil
}

func (o *testOutput) Header() []string {
	return []string{"SUITE", "CASE", "STATUS", "DIFFERENCES", "DURATION"}
}

func (o *testOutput) Rows() [][]string {
	var rows [][]string
	for _, s := range o.Suites {
		for _, r := range s.Report.Results {
			rows = append(rows, []string{
				s.Suite,
				r.CaseID,
				string(r.Status),
				strconv.Itoa(len(r.Differences)),
				fmt.Sprintf("%.2fms", r.DurationMs),
			})
		}
	}
	return rows
}

func (a *app) runTest(cmd *cobra.Command, args []string, opts *testOptions) error {
	sc := a.cfg.Simulation
	if opts.workers > 0 {
		sc.Workers = opts.workers
	}
	if opts.tolerance > 0 {
		sc.ScoreTolerance = opts.tolerance
	}

	eng, err := a.newEngine()
	if err != nil {
		return cli.NewConfigError(a.configPath, "engine", "invalid engine settings", err)
	}
	harness, err := simulation.NewHarness(eng, simulationConfig(&sc), a.logger)
	if err != nil {
		return cli.NewConfigError(a.configPath, "simulation", "invalid simulation settings", err)
	}

	out := &testOutput{}
	for _, path := range args {
		suite, err := simulation.LoadSuite(path)
		if err != nil {
			return cli.NewCommandError("test", err)
		}

		var progress *cli.SimpleProgress
		if opts.progress {
			progress = cli.NewProgressReporter(a.stderr, "cases")
			progress.Start(int64(len(suite.Cases)))
			harness.WithProgress(func(done, total int) { progress.Update(int64(done)) })
		}
		report := harness.RunAll(cmd.Context(), suite.Cases, suite.Target)
		if progress != nil {
			progress.Finish()
		}
		out.Suites = append(out.Suites, suiteOutput{Suite: suite.Name, Path: path, Report: report})
	}

	if err := a.print(cmd, out); err != nil {
		return err
	}
	if !out.ok() {
		return cli.Reported("test", fmt.Errorf("simulation suites failed"))
	}
	return nil
}
