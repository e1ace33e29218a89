package model

import (
	"reflect"
	"testing"
)

func sampleDefinition() *WorkflowDefinition {
	return &WorkflowDefinition{
		ID:      "wf-1",
		Name:    "Personal loan",
		Version: 3,
		Status:  StatusPublished,
		Nodes: []WorkflowNode{
			{ID: "start", Type: NodeStart, Data: NodeData{Label: "Start"}},
			{ID: "score", Type: NodeCondition, Data: NodeData{
				Label: "Score check",
				Rules: []Rule{{
					ID:       "r1",
					Enabled:  true,
					Priority: 50,
					Conditions: []Condition{{
						ID: "c1", Field: "creditScore", Operator: OperatorIn,
						Value: []any{700.0, 800.0}, DataType: DataTypeNumber,
					}},
					Actions: []Action{{Type: ActionAddFlag, Value: "prime"}},
				}},
				Config: map[string]any{"threshold": map[string]any{"min": 1.0}},
			}},
			{ID: "end", Type: NodeEnd, Data: NodeData{Label: "End"}},
		},
		Connections: []WorkflowConnection{
			{ID: "e1", Source: "start", Target: "score"},
			{ID: "e2", Source: "score", Target: "end", Label: LabelTrue},
			{ID: "e3", Source: "score", Target: "end", Label: LabelFalse},
		},
		DataRequirements: DataRequirements{Required: []string{"creditScore"}},
		Metadata:         map[string]string{"owner": "risk"},
	}
}

func TestClone_DeepCopy(t *testing.T) {
	orig := sampleDefinition()
	clone := orig.Clone()

	if !reflect.DeepEqual(orig, clone) {
		t.Fatal("clone is not value-equal to original")
	}

	clone.Nodes[1].Data.Rules[0].Conditions[0].Value.([]any)[0] = 1.0
	clone.Nodes[1].Data.Config["threshold"].(map[string]any)["min"] = 99.0
	clone.Connections[0].Target = "end"
	clone.DataRequirements.Required[0] = "income"
	clone.Metadata["owner"] = "ops"

	if got := orig.Nodes[1].Data.Rules[0].Conditions[0].Value.([]any)[0]; got != 700.0 {
		t.Errorf("condition value mutated through clone: %v", got)
	}
	if got := orig.Nodes[1].Data.Config["threshold"].(map[string]any)["min"]; got != 1.0 {
		t.Errorf("config mutated through clone: %v", got)
	}
	if orig.Connections[0].Target != "score" {
		t.Error("connections share storage with clone")
	}
	if orig.DataRequirements.Required[0] != "creditScore" {
		t.Error("data requirements share storage with clone")
	}
	if orig.Metadata["owner"] != "risk" {
		t.Error("metadata shares storage with clone")
	}
}

func TestNewVersion(t *testing.T) {
	orig := sampleDefinition()
	next := orig.NewVersion()

	if next.Version != 4 {
		t.Errorf("Version = %d, want 4", next.Version)
	}
	if next.Status != StatusDraft {
		t.Errorf("Status = %q, want draft", next.Status)
	}
	if orig.Status != StatusPublished || orig.Version != 3 {
		t.Error("NewVersion modified the published definition")
	}
	next.Nodes[0].Data.Label = "changed"
	if orig.Nodes[0].Data.Label != "Start" {
		t.Error("new version shares nodes with original")
	}
}

func TestWorkflowNode_IsBranching(t *testing.T) {
	tests := []struct {
		name string
		node WorkflowNode
		want bool
	}{
		{"condition", WorkflowNode{Type: NodeCondition}, true},
		{"decision", WorkflowNode{Type: NodeDecision}, true},
		{"validation", WorkflowNode{Type: NodeValidation}, true},
		{"plain rule set", WorkflowNode{Type: NodeRuleSet}, false},
		{"pass/fail rule set", WorkflowNode{Type: NodeRuleSet, Data: NodeData{Config: map[string]any{ConfigMode: ModePassFail}}}, true},
		{"action", WorkflowNode{Type: NodeAction}, false},
		{"start", WorkflowNode{Type: NodeStart}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.IsBranching(); got != tt.want {
				t.Errorf("IsBranching() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	in := map[string]any{
		"a": 1,
		"b": []any{int64(2), float32(1.5), "x"},
		"c": map[any]any{"d": uint8(3)},
		"e": []string{"p", "q"},
	}
	want := map[string]any{
		"a": 1.0,
		"b": []any{2.0, 1.5, "x"},
		"c": map[string]any{"d": 3.0},
		"e": []any{"p", "q"},
	}
	if got := NormalizeValue(in); !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeValue() = %#v, want %#v", got, want)
	}
}

func TestEnums(t *testing.T) {
	if !OperatorBetween.RequiresList() || OperatorEquals.RequiresList() {
		t.Error("RequiresList mismatch")
	}
	if !OperatorIsNull.IsNullCheck() || !OperatorIsNotNull.IsNullCheck() {
		t.Error("IsNullCheck mismatch")
	}
	if !ActionApprove.IsTerminal() || !ActionReview.IsTerminal() || ActionAddFlag.IsTerminal() {
		t.Error("IsTerminal mismatch")
	}
	if !ActionSetScore.RequiresValue() || ActionApprove.RequiresValue() {
		t.Error("RequiresValue mismatch")
	}
	if Operator("matches").IsValid() || NodeKind("loop").IsValid() {
		t.Error("unknown enum reported valid")
	}
}
