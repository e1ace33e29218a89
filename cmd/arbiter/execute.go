package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/arbiter/pkg/cli"
	"mercator-hq/arbiter/pkg/engine"
	"mercator-hq/arbiter/pkg/evidence/recorder"
	"mercator-hq/arbiter/pkg/model"
	"mercator-hq/arbiter/pkg/validator"
)

type executeOptions struct {
	workflow string
	id       string
	data     string
	record   bool
}

func newExecuteCommand(a *app) *cobra.Command {
	opts := &executeOptions{}
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Run one application through a workflow",
		Long: `Execute a workflow against one applicant record and print the decision.

The workflow comes from a definition file (--workflow) or from the
registry's published version (--id). Applicant data is a JSON or YAML
object; "-" reads it from stdin.

Examples:
  arbiter execute --workflow workflows/personal-loan.yaml --data applicant.json
  cat applicant.json | arbiter execute --id personal-loan --data - -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExecute(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.workflow, "workflow", "w", "", "workflow definition file")
	cmd.Flags().StringVar(&opts.id, "id", "", "published workflow id in the registry")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", `applicant data file ("-" for stdin)`)
	cmd.Flags().BoolVar(&opts.record, "record", false, "store an evidence record for the decision (published workflows only)")
	cmd.MarkFlagsMutuallyExclusive("workflow", "id")
	cmd.MarkFlagsOneRequired("workflow", "id")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

type evaluateOptions struct {
	rules  string
	data   string
	name   string
	record bool
}

func newEvaluateCommand(a *app) *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a standalone rule set",
		Long: `Evaluate a rule set against one applicant record.

Rules run in priority order, highest first. The rule file holds either a
list of rules or an object with a rules key.

Example:
  arbiter evaluate --rules rules/affordability.yaml --data applicant.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEvaluate(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.rules, "rules", "r", "", "rule set file")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", `applicant data file ("-" for stdin)`)
	cmd.Flags().StringVar(&opts.name, "name", "", "rule set id used in evidence records")
	cmd.Flags().BoolVar(&opts.record, "record", false, "store an evidence record for the decision")
	_ = cmd.MarkFlagRequired("rules")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// decisionOutput is the printed outcome of execute and evaluate.
type decisionOutput struct {
	ExecutionID     string                `json:"executionId"`
	WorkflowID      string                `json:"workflowId,omitempty"`
	WorkflowVersion int                   `json:"workflowVersion,omitempty"`
	Result          *model.DecisionResult `json:"result"`
	EvidenceID      string                `json:"evidenceId,omitempty"`
}

func (o *decisionOutput) fields() [][]string {
	r := o.Result
	score := "-"
	if v, ok := r.ScoreValue(); ok {
		score = fmt.Sprintf("%g", v)
	}
	rows := [][]string{
		{"Decision", string(r.Decision)},
		{"Score", score},
		{"Flags", joinOrDash(r.Flags)},
		{"Executed Rules", joinOrDash(r.ExecutedRules)},
	}
	if len(r.RequiredDocuments) > 0 {
		rows = append(rows, []string{"Required Documents", strings.Join(r.RequiredDocuments, ", ")})
	}
	if len(r.Path) > 0 {
		rows = append(rows, []string{"Path", strings.Join(r.Path, " -> ")})
	}
	if len(r.Errors) > 0 {
		rows = append(rows, []string{"Errors", strings.Join(r.Errors, ", ")})
	}
	if len(r.Warnings) > 0 {
		rows = append(rows, []string{"Warnings", strings.Join(r.Warnings, "; ")})
	}
	rows = append(rows, []string{"Execution Time", fmt.Sprintf("%.3fms", r.ExecutionTimeMs)})
	if o.EvidenceID != "" {
		rows = append(rows, []string{"Evidence", o.EvidenceID})
	}
	return rows
}

func (o *decisionOutput) WriteText(w io.Writer) error {
	if o.WorkflowID != "" {
		fmt.Fprintf(w, "Workflow: %s (v%d)\n", o.WorkflowID, o.WorkflowVersion)
	}
	for _, row := range o.fields() {
		fmt.Fprintf(w, "%s: %s\n", row[0], row[1])
	}
	return nil
}

func (o *decisionOutput) Header() []string { return []string{"FIELD", "VALUE"} }

func (o *decisionOutput) Rows() [][]string { return o.fields() }

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func (a *app) runExecute(cmd *cobra.Command, opts *executeOptions) error {
	ctx := cmd.Context()
	def, err := a.loadWorkflow(ctx, opts.workflow, opts.id)
	if err != nil {
		return cli.NewCommandError("execute", err)
	}
	if result := validator.ValidateWorkflow(def); !result.IsValid {
		for _, e := range result.Errors {
			fmt.Fprintf(a.stderr, "✗ %s\n", e)
		}
		return cli.Reported("execute", fmt.Errorf("workflow %s failed validation", def.ID))
	}
	if opts.record && def.Status != model.StatusPublished {
		return cli.NewCommandError("execute", fmt.Errorf(
			"workflow %s v%d is %s: only published definitions can be recorded as decisions", def.ID, def.Version, def.Status))
	}

	record, err := readApplicant(cmd, opts.data)
	if err != nil {
		return cli.NewUsageError("execute", err)
	}

	eng, err := a.newEngine()
	if err != nil {
		return cli.NewConfigError(a.configPath, "engine", "invalid engine settings", err)
	}
	result, err := eng.Execute(ctx, def, record)
	if err != nil {
		return cli.NewCommandError("execute", err)
	}
	a.logger.Debug("workflow executed", "workflow_id", def.ID, "summary", engine.Summary(result))

	out := &decisionOutput{
		ExecutionID:     uuid.NewString(),
		WorkflowID:      def.ID,
		WorkflowVersion: def.Version,
		Result:          result,
	}
	if opts.record {
		out.EvidenceID, err = a.storeEvidence(ctx, recorder.Entry{
			ExecutionID: out.ExecutionID,
			Workflow:    def,
			Input:       record,
			Result:      result,
		})
		if err != nil {
			return cli.NewCommandError("execute", err)
		}
	}
	return a.print(cmd, out)
}

func (a *app) runEvaluate(cmd *cobra.Command, opts *evaluateOptions) error {
	rules, err := a.decoder().ReadRulesFile(opts.rules)
	if err != nil {
		return cli.NewCommandError("evaluate", err)
	}
	if result := validator.ValidateRules(rules); !result.IsValid {
		for _, e := range result.Errors {
			fmt.Fprintf(a.stderr, "✗ %s\n", e)
		}
		return cli.Reported("evaluate", fmt.Errorf("rule set %s failed validation", opts.rules))
	}

	record, err := readApplicant(cmd, opts.data)
	if err != nil {
		return cli.NewUsageError("evaluate", err)
	}

	eng, err := a.newEngine()
	if err != nil {
		return cli.NewConfigError(a.configPath, "engine", "invalid engine settings", err)
	}
	result := eng.EvaluateRuleSet(rules, record)

	out := &decisionOutput{ExecutionID: uuid.NewString(), Result: result}
	if opts.record {
		out.EvidenceID, err = a.storeEvidence(cmd.Context(), recorder.Entry{
			ExecutionID: out.ExecutionID,
			RuleSetID:   opts.name,
			Input:       record,
			Result:      result,
		})
		if err != nil {
			return cli.NewCommandError("evaluate", err)
		}
	}
	return a.print(cmd, out)
}

// loadWorkflow reads a definition file or the registry's published version.
func (a *app) loadWorkflow(ctx context.Context, path, id string) (*model.WorkflowDefinition, error) {
	if path != "" {
		return a.decoder().ReadWorkflowFile(path)
	}
	if !a.cfg.Registry.Enabled {
		return nil, errors.New("--id needs registry.enabled in the config")
	}
	reg, err := a.openRegistry()
	if err != nil {
		return nil, err
	}
	defer reg.Close()
	return reg.Published(ctx, id)
}

// storeEvidence writes one record synchronously, bypassing the recorder.
func (a *app) storeEvidence(ctx context.Context, entry recorder.Entry) (string, error) {
	if !a.cfg.Evidence.Enabled {
		return "", errors.New("--record needs evidence.enabled in the config")
	}
	store, err := a.openEvidence()
	if err != nil {
		return "", err
	}
	defer store.Close()

	rec, err := recorder.BuildRecord(entry)
	if err != nil {
		return "", err
	}
	if err := store.Store(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}
