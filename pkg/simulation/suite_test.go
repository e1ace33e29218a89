package simulation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const suiteWorkflow = `
id: personal-loan
name: Personal loan
nodes:
  - id: start
    type: start
  - id: risk
    type: rule_set
    data:
      rules:
        - id: approve-high-score
          priority: 90
          conditions:
            - {id: c1, field: creditScore, operator: greater_than_or_equal, value: 700, dataType: number}
          actions:
            - {type: approve}
        - id: decline-high-dti
          priority: 80
          conditions:
            - {id: c2, field: debtToIncomeRatio, operator: greater_than, value: 0.4, dataType: number}
          actions:
            - {type: decline}
            - {type: require_document, value: bank-statement}
  - id: end
    type: end
connections:
  - {id: e1, source: start, target: risk}
  - {id: e2, source: risk, target: end}
`

const loanSuite = `
name: personal loan regression
workflow: workflows/loan.yaml
cases:
  - id: A
    inputData: {creditScore: 780, debtToIncomeRatio: 0.25}
    expectedOutput: {decision: approve}
  - id: B
    inputData: {creditScore: 580, debtToIncomeRatio: 0.45}
    expectedOutput:
      decision: decline
      requiredDocuments: [bank-statement]
  - inputData: {creditScore: 650, debtToIncomeRatio: 0.3}
    expectedOutput: {decision: review, flags: []}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "workflows", "loan.yaml"), suiteWorkflow)
	suitePath := filepath.Join(dir, "loan_suite.yaml")
	writeFile(t, suitePath, loanSuite)

	suite, err := LoadSuite(suitePath)
	if err != nil {
		t.Fatalf("LoadSuite() error = %v", err)
	}
	if suite.Target.Workflow == nil || suite.Target.Workflow.ID != "personal-loan" {
		t.Fatalf("Target = %+v", suite.Target)
	}
	if len(suite.Cases) != 3 || suite.Cases[2].ID != "case-3" {
		t.Errorf("Cases = %+v", suite.Cases)
	}

	report := newHarness(t, newEngine(t), 2).RunAll(context.Background(), suite.Cases, suite.Target)
	if !report.OK() {
		for _, r := range report.Results {
			t.Logf("%s: %s %+v %s", r.CaseID, r.Status, r.Differences, r.Error)
		}
		t.Fatalf("Stats = %+v", report.Stats)
	}
}

func TestLoadSuite_Rules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rules.json"), `[{"id":"r","priority":1,"conditions":[{"field":"x","operator":"is_null"}],"actions":[{"type":"decline"}]}]`)
	writeFile(t, filepath.Join(dir, "suite.yaml"), "rules: rules.json\ncases:\n  - id: no-x\n    inputData: {}\n    expectedOutput: {decision: decline}\n")

	suite, err := LoadSuite(filepath.Join(dir, "suite.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if suite.Name != "suite.yaml" || len(suite.Target.Rules) != 1 {
		t.Errorf("suite = %+v", suite)
	}
	report := newHarness(t, newEngine(t), 1).RunAll(context.Background(), suite.Cases, suite.Target)
	if !report.OK() {
		t.Errorf("report = %+v", report.Results)
	}
}

func TestLoadSuite_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no target", "cases: []\n", "must name a workflow or rules"},
		{"both targets", "workflow: a.yaml\nrules: b.yaml\n", "not both"},
		{"missing file", "workflow: missing.yaml\n", "failed to load workflow"},
		{"bad yaml", "cases: [\n", "failed to parse suite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			writeFile(t, path, tt.content)
			_, err := LoadSuite(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadSuite() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
