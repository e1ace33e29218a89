package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/evidence/export"
	"mercator-hq/arbiter/pkg/evidence/query"
	"mercator-hq/arbiter/pkg/evidence/retention"
)

type evidenceFilter struct {
	workflow string
	decision string
	mode     string
	since    string
	until    string
	limit    int
	offset   int
	order    string
}

func (f *evidenceFilter) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.workflow, "workflow", "", "filter by workflow or rule set id")
	flags.StringVar(&f.decision, "decision", "", "filter by decision (approve, decline, review)")
	flags.StringVar(&f.mode, "mode", "", "filter by mode (workflow, rules)")
	flags.StringVar(&f.since, "since", "", "earliest creation time (RFC 3339)")
	flags.StringVar(&f.until, "until", "", "latest creation time (RFC 3339)")
	flags.IntVar(&f.limit, "limit", 100, "max results")
	flags.IntVar(&f.offset, "offset", 0, "pagination offset")
	flags.StringVar(&f.order, "order", "desc", "sort order on creation time: asc, desc")
}

func (f *evidenceFilter) query() (*evidence.Query, error) {
	q := &evidence.Query{
		WorkflowID: f.workflow,
		Decision:   f.decision,
		Mode:       evidence.Mode(f.mode),
		Limit:      f.limit,
		Offset:     f.offset,
		SortOrder:  f.order,
	}
	if q.Mode != "" && !q.Mode.IsValid() {
		return nil, fmt.Errorf("invalid mode %q", f.mode)
	}
	for _, bound := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{
		{"since", f.since, &q.StartTime},
		{"until", f.until, &q.EndTime},
	} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s %q: want RFC 3339", bound.name, bound.raw)
		}
		*bound.dst = &t
	}
	query.ApplyDefaults(q)
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	return q, nil
}

func newEvidenceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Query, export and prune the decision audit trail",
		Long: `Access the evidence store configured under evidence in the config file.

Every decision made by the server (and by execute --record) is stored as
an evidence record holding the outcome and a SHA-256 hash of the input.

Subcommands:
  query   - list records matching filters
  export  - write matching records as JSON or CSV
  prune   - delete records older than the retention period`,
	}
	cmd.AddCommand(newEvidenceQueryCommand(a), newEvidenceExportCommand(a), newEvidencePruneCommand(a))
	return cmd
}

// recordList is the printed form of a query result.
type recordList struct {
	Records []*evidence.Record `json:"records"`
	Total   int64              `json:"total"`
}

func (l *recordList) WriteText(w io.Writer) error {
	for _, r := range l.Records {
		fmt.Fprintf(w, "%s  %s  %-8s %s", r.CreatedAt.Format(time.RFC3339), r.ID, r.Decision, workflowLabel(r))
		if len(r.Flags) > 0 {
			fmt.Fprintf(w, "  flags=%s", strings.Join(r.Flags, ","))
		}
		if r.Failed() {
			fmt.Fprintf(w, "  errors=%s", strings.Join(r.Errors, ","))
		}
		fmt.Fprintln(w)
	}
	_, err := fmt.Fprintf(w, "\n%d of %d records\n", len(l.Records), l.Total)
	return err
}

func (l *recordList) Header() []string {
	return []string{"CREATED", "ID", "WORKFLOW", "MODE", "DECISION", "SCORE", "FLAGS"}
}

func (l *recordList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Records))
	for _, r := range l.Records {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%g", *r.Score)
		}
		rows = append(rows, []string{
			r.CreatedAt.Format(time.RFC3339),
			r.ID,
			workflowLabel(r),
			string(r.Mode),
			r.Decision,
			score,
			joinOrDash(r.Flags),
		})
	}
	return rows
}

func workflowLabel(r *evidence.Record) string {
	switch {
	case r.WorkflowID == "":
		return "-"
	case r.WorkflowVersion > 0:
		return fmt.Sprintf("%s@v%d", r.WorkflowID, r.WorkflowVersion)
	}
	return r.WorkflowID
}

func newEvidenceQueryCommand(a *app) *cobra.Command {
	filter := &evidenceFilter{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query evidence records",
		Long: `Query evidence records with filters.

Examples:
  # Declines since the start of the year
  arbiter evidence query --decision decline --since 2026-01-01T00:00:00Z

  # One workflow, oldest first, as a table
  arbiter evidence query --workflow personal-loan --order asc -o table`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := filter.query()
			if err != nil {
				return cli.NewUsageError("evidence query", err)
			}
			store, err := a.openEvidence()
			if err != nil {
				return cli.NewCommandError("evidence query", err)
			}
			defer store.Close()

			records, err := store.Query(cmd.Context(), q)
			if err != nil {
				return cli.NewCommandError("evidence query", err)
			}
			total, err := store.Count(cmd.Context(), q)
			if err != nil {
				return cli.NewCommandError("evidence query", err)
			}
			if records == nil {
				records = []*evidence.Record{}
			}
			return a.print(cmd, &recordList{Records: records, Total: total})
		},
	}
	filter.register(cmd)
	return cmd
}

func newEvidenceExportCommand(a *app) *cobra.Command {
	filter := &evidenceFilter{}
	var (
		format string
		file   string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export evidence records as JSON or CSV",
		Long: `Export evidence records matching the filters.

Examples:
  arbiter evidence export --format csv --file declines.csv --decision decline
  arbiter evidence export --format json --pretty --limit 1000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var exporter evidence.Exporter
			switch format {
			case "json":
				exporter = export.NewJSONExporter(pretty)
			case "csv":
				exporter = export.NewCSVExporter(true)
			default:
				return cli.NewUsageError("evidence export", fmt.Errorf("unknown export format %q (want json or csv)", format))
			}
			q, err := filter.query()
			if err != nil {
				return cli.NewUsageError("evidence export", err)
			}

			store, err := a.openEvidence()
			if err != nil {
				return cli.NewCommandError("evidence export", err)
			}
			defer store.Close()

			records, err := store.Query(cmd.Context(), q)
			if err != nil {
				return cli.NewCommandError("evidence export", err)
			}

			w := cmd.OutOrStdout()
			if file != "" {
				f, err := os.Create(file)
				if err != nil {
					return cli.NewCommandError("evidence export", err)
				}
				defer f.Close()
				w = f
			}
			if err := exporter.Export(cmd.Context(), records, w); err != nil {
				return cli.NewCommandError("evidence export", err)
			}
			if file != "" {
				fmt.Fprintf(a.stderr, "✓ Exported %d records to %s\n", len(records), file)
			}
			return nil
		},
	}
	filter.register(cmd)
	cmd.Flags().StringVar(&format, "format", "json", "export format: json, csv")
	cmd.Flags().StringVar(&file, "file", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}

func newEvidencePruneCommand(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete records older than the retention period",
		Long: `Delete evidence records created before now minus the retention period.

The period comes from evidence.retention.days unless --days is given.
With evidence.retention.archive_before_delete set, the records are first
written to a JSON file under evidence.retention.archive_path.

Example:
  arbiter evidence prune --days 365`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := a.cfg.Evidence.Retention
			if cmd.Flags().Changed("days") {
				rc.Days = days
			}
			if rc.Days <= 0 {
				return cli.NewUsageError("evidence prune", fmt.Errorf("retention days must be positive, got %d", rc.Days))
			}

			store, err := a.openEvidence()
			if err != nil {
				return cli.NewCommandError("evidence prune", err)
			}
			defer store.Close()

			pruner := retention.NewPruner(store, &retention.Config{
				RetentionDays:       rc.Days,
				ArchiveBeforeDelete: rc.ArchiveBeforeDelete,
				ArchivePath:         rc.ArchivePath,
			}, a.logger)
			deleted, err := pruner.Prune(cmd.Context())
			if err != nil {
				return cli.NewCommandError("evidence prune", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %d records created before %s\n", deleted, pruner.Cutoff().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention period in days (default from config)")
	return cmd
}
