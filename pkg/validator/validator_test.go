package validator

import (
	"strings"
	"sync"
	"testing"

	"mercator-hq/arbiter/pkg/model"
)

func scoreRule(id string) model.Rule {
	return model.Rule{
		ID:              id,
		Name:            id,
		Priority:        50,
		Enabled:         true,
		LogicalOperator: model.LogicalAnd,
		Conditions: []model.Condition{{
			ID: "c1", Field: "creditScore", Operator: model.OperatorGreaterThanOrEqual,
			Value: 700.0, DataType: model.DataTypeNumber,
		}},
		Actions: []model.Action{{Type: model.ActionApprove}},
	}
}

// validWorkflow returns start -> condition -(true)-> approve end, -(false)-> review end.
func validWorkflow() *model.WorkflowDefinition {
	return &model.WorkflowDefinition{
		ID:      "wf",
		Name:    "loan",
		Version: 1,
		Status:  model.StatusDraft,
		Nodes: []model.WorkflowNode{
			{ID: "start", Type: model.NodeStart},
			{ID: "check", Type: model.NodeCondition, Data: model.NodeData{Rules: []model.Rule{scoreRule("r1")}}},
			{ID: "approve", Type: model.NodeAction, Data: model.NodeData{Action: &model.Action{Type: model.ActionApprove}}},
			{ID: "end", Type: model.NodeEnd},
		},
		Connections: []model.WorkflowConnection{
			{ID: "e1", Source: "start", Target: "check"},
			{ID: "e2", Source: "check", Target: "approve", Label: model.LabelTrue},
			{ID: "e3", Source: "check", Target: "end", Label: model.LabelFalse},
			{ID: "e4", Source: "approve", Target: "end"},
		},
	}
}

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidateWorkflow_Valid(t *testing.T) {
	result := ValidateWorkflow(validWorkflow())
	if !result.IsValid {
		t.Fatalf("expected valid workflow, got errors: %v", result.Errors)
	}
	if result.Err() != nil {
		t.Errorf("Err() = %v, want nil", result.Err())
	}
}

func TestValidateWorkflow_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(w *model.WorkflowDefinition)
		wantErr string
	}{
		{
			name: "no start node",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes[0].Type = model.NodeDataSource
			},
			wantErr: "no start node",
		},
		{
			name: "two start nodes",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes = append(w.Nodes, model.WorkflowNode{ID: "start2", Type: model.NodeStart})
				w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e5", Source: "start2", Target: "end"})
			},
			wantErr: "2 start nodes",
		},
		{
			name: "no end node",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes[3].Type = model.NodeDataSource
			},
			wantErr: "no end node",
		},
		{
			name: "dangling target",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections[3].Target = "ned"
			},
			wantErr: `target "ned" does not exist`,
		},
		{
			name: "dangling source",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e5", Source: "ghost", Target: "end"})
			},
			wantErr: `source "ghost" does not exist`,
		},
		{
			name: "unreachable node",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes = append(w.Nodes, model.WorkflowNode{ID: "orphan", Type: model.NodeDataSource})
				w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e5", Source: "orphan", Target: "end"})
			},
			wantErr: "node orphan: node is unreachable from start",
		},
		{
			name: "node without incoming edge",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes = append(w.Nodes, model.WorkflowNode{ID: "end2", Type: model.NodeEnd})
			},
			wantErr: "node end2: node has no incoming connection",
		},
		{
			name: "condition missing false branch",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections = w.Connections[:2]
				w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e4", Source: "approve", Target: "end"})
			},
			wantErr: `missing its "false" branch`,
		},
		{
			name: "condition dead end",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections = []model.WorkflowConnection{
					{ID: "e1", Source: "start", Target: "check"},
					{ID: "e4", Source: "start", Target: "approve"},
					{ID: "e5", Source: "approve", Target: "end"},
				}
			},
			wantErr: "dead end",
		},
		{
			name: "duplicate branch label",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections[2].Label = model.LabelTrue
			},
			wantErr: `share branch label "true"`,
		},
		{
			name: "duplicate source target pair",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e5", Source: "approve", Target: "end"})
			},
			wantErr: "duplicate connection to end",
		},
		{
			name: "self loop",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e5", Source: "approve", Target: "approve"})
			},
			wantErr: "source and target are the same node",
		},
		{
			name: "end node with outgoing edge",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e5", Source: "end", Target: "check"})
			},
			wantErr: "end node has an outgoing connection",
		},
		{
			name: "duplicate node id",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes = append(w.Nodes, model.WorkflowNode{ID: "check", Type: model.NodeEnd})
			},
			wantErr: "duplicate node id",
		},
		{
			name: "action node without action",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes[2].Data.Action = nil
			},
			wantErr: "no action configured",
		},
		{
			name: "unknown node type",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes[2].Type = "actoin"
			},
			wantErr: `did you mean "action"?`,
		},
		{
			name: "invalid guard expression",
			mutate: func(w *model.WorkflowDefinition) {
				w.Connections[3].Condition = "income >"
			},
			wantErr: "invalid condition",
		},
		{
			name: "embedded rule without conditions",
			mutate: func(w *model.WorkflowDefinition) {
				w.Nodes[1].Data.Rules[0].Conditions = nil
			},
			wantErr: "node check rule r1: rule has no conditions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validWorkflow()
			tt.mutate(w)
			result := ValidateWorkflow(w)
			if result.IsValid {
				t.Fatalf("expected invalid workflow")
			}
			if !containsError(result.Errors, tt.wantErr) {
				t.Errorf("errors %q do not mention %q", result.Errors, tt.wantErr)
			}
		})
	}
}

func TestValidateWorkflow_CyclesAllowed(t *testing.T) {
	w := validWorkflow()
	// Re-review loop: approve action goes back to the condition as well as to end.
	w.Nodes = append(w.Nodes, model.WorkflowNode{ID: "retry", Type: model.NodeDataSource})
	w.Connections[3] = model.WorkflowConnection{ID: "e4", Source: "approve", Target: "retry"}
	w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e5", Source: "retry", Target: "check"})

	result := ValidateWorkflow(w)
	if !result.IsValid {
		t.Fatalf("cyclic workflow rejected: %v", result.Errors)
	}
}

func TestValidateWorkflow_PassFailRuleSet(t *testing.T) {
	w := &model.WorkflowDefinition{
		Nodes: []model.WorkflowNode{
			{ID: "start", Type: model.NodeStart},
			{ID: "rules", Type: model.NodeRuleSet, Data: model.NodeData{Rules: []model.Rule{scoreRule("r1")}}},
			{ID: "end", Type: model.NodeEnd},
			{ID: "manual", Type: model.NodeEnd},
		},
		Connections: []model.WorkflowConnection{
			{ID: "e1", Source: "start", Target: "rules"},
			{ID: "e2", Source: "rules", Target: "end", Label: model.LabelPass},
		},
	}

	result := ValidateWorkflow(w)
	if result.IsValid || !containsError(result.Errors, `missing its "fail" branch`) {
		t.Fatalf("expected missing fail branch, got %v", result.Errors)
	}

	w.Connections = append(w.Connections, model.WorkflowConnection{ID: "e3", Source: "rules", Target: "manual", Label: model.LabelFail})
	if result := ValidateWorkflow(w); !result.IsValid {
		t.Fatalf("expected valid, got %v", result.Errors)
	}
}

func TestValidateWorkflow_Nil(t *testing.T) {
	if ValidateWorkflow(nil).IsValid {
		t.Fatal("nil workflow reported valid")
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *model.Rule)
		wantErr string
	}{
		{"valid", func(r *model.Rule) {}, ""},
		{"empty conditions", func(r *model.Rule) { r.Conditions = nil }, "no conditions"},
		{"missing id", func(r *model.Rule) { r.ID = "" }, "rule id is required"},
		{"priority too high", func(r *model.Rule) { r.Priority = 101 }, "out of range"},
		{"priority negative", func(r *model.Rule) { r.Priority = -1 }, "out of range"},
		{"empty field", func(r *model.Rule) { r.Conditions[0].Field = " " }, "field is required"},
		{"unknown operator", func(r *model.Rule) { r.Conditions[0].Operator = "greater_then" }, `did you mean "greater_than"?`},
		{"missing value", func(r *model.Rule) { r.Conditions[0].Value = nil }, "value is required"},
		{"null check ignores value", func(r *model.Rule) {
			r.Conditions[0].Operator = model.OperatorIsNull
			r.Conditions[0].Value = nil
		}, ""},
		{"in requires list", func(r *model.Rule) { r.Conditions[0].Operator = model.OperatorIn }, "requires a list value"},
		{"between requires two bounds", func(r *model.Rule) {
			r.Conditions[0].Operator = model.OperatorBetween
			r.Conditions[0].Value = []any{1.0, 2.0, 3.0}
		}, "exactly two bounds"},
		{"unknown data type", func(r *model.Rule) { r.Conditions[0].DataType = "integer" }, "unknown data type"},
		{"bad logical operator", func(r *model.Rule) { r.LogicalOperator = "XOR" }, "unknown logical operator"},
		{"set_score without value", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionSetScore}}
		}, "value is required"},
		{"add_flag without value", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionAddFlag, Value: ""}}
		}, "value is required"},
		{"require_document without value", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionRequireDocument}}
		}, "value is required"},
		{"set_score not numeric", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionSetScore, Value: "high"}}
		}, "is not a score"},
		{"set_score delta", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionSetScore, Value: map[string]any{"delta": -5.0}}}
		}, ""},
		{"calculate without output field", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionCalculate, Value: "income * 2"}}
		}, "outputField is required"},
		{"calculate bad expression", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionCalculate, Value: "income *", OutputField: "x"}}
		}, "invalid expression"},
		{"unknown action", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: "aprove"}}
		}, `did you mean "approve"?`},
		{"approve with message only", func(r *model.Rule) {
			r.Actions = []model.Action{{Type: model.ActionDecline, Message: "too risky"}}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := scoreRule("r1")
			tt.mutate(&rule)
			result := ValidateRule(&rule)
			if tt.wantErr == "" {
				if !result.IsValid {
					t.Fatalf("expected valid rule, got %v", result.Errors)
				}
				return
			}
			if result.IsValid {
				t.Fatalf("expected invalid rule")
			}
			if !containsError(result.Errors, tt.wantErr) {
				t.Errorf("errors %q do not mention %q", result.Errors, tt.wantErr)
			}
		})
	}
}

func TestValidateRules_Warnings(t *testing.T) {
	disabled := scoreRule("r2")
	disabled.Enabled = false
	result := ValidateRules([]model.Rule{scoreRule("r1"), disabled, scoreRule("r1")})
	if !result.IsValid {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if !containsError(result.Warnings, "duplicate rule id") {
		t.Errorf("missing duplicate id warning: %v", result.Warnings)
	}
	if !containsError(result.Warnings, "disabled") {
		t.Errorf("missing disabled warning: %v", result.Warnings)
	}
}

func TestIssueList(t *testing.T) {
	list := NewIssueList()
	if list.ToError() != nil {
		t.Fatal("empty list should not be an error")
	}
	list.Addf(CategoryReference, "", "", "connection %s: missing", "e1")
	list.Addf(CategoryStructural, "n1", "", "dead end")

	if list.Count() != 2 {
		t.Errorf("Count() = %d, want 2", list.Count())
	}
	if !list.HasCategory(CategoryReference) || list.HasCategory(CategoryRule) {
		t.Error("HasCategory mismatch")
	}
	if got := len(list.ByCategory(CategoryStructural)); got != 1 {
		t.Errorf("ByCategory(structural) = %d, want 1", got)
	}
	if msg := list.Error(); !strings.Contains(msg, "2 validation errors") || !strings.Contains(msg, "node n1: dead end") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"greater_then", "greater_than", 1},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCache(t *testing.T) {
	cache := NewCache(nil, 2)

	w := validWorkflow()
	first := cache.Validate(w)
	second := cache.Validate(validWorkflow())
	if !first.IsValid || !second.IsValid {
		t.Fatal("expected valid results")
	}
	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", hits, misses)
	}

	changed := validWorkflow()
	changed.Nodes[0].Type = model.NodeDataSource
	if cache.Validate(changed).IsValid {
		t.Error("changed workflow served a stale valid result")
	}

	third := validWorkflow()
	third.Name = "other"
	cache.Validate(third)
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after eviction", cache.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewCache(nil, 2)
	named := func(name string) *model.WorkflowDefinition {
		w := validWorkflow()
		w.Name = name
		return w
	}

	cache.Validate(named("a"))
	cache.Validate(named("b"))
	cache.Validate(named("a")) // a is now the most recently used
	cache.Validate(named("c")) // evicts b

	_, missesBefore := cache.Stats()
	cache.Validate(named("a"))
	if _, misses := cache.Stats(); misses != missesBefore {
		t.Error("recently used entry was evicted")
	}
	cache.Validate(named("b"))
	if _, misses := cache.Stats(); misses != missesBefore+1 {
		t.Error("least recently used entry was kept")
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}
}

func TestCache_Concurrent(t *testing.T) {
	cache := NewCache(nil, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.Validate(validWorkflow()).IsValid {
				t.Error("expected valid result")
			}
		}()
	}
	wg.Wait()
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestContentHash_Stable(t *testing.T) {
	a, err := ContentHash(validWorkflow())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := ContentHash(validWorkflow())
	if a != b {
		t.Error("equal definitions hash differently")
	}
}
