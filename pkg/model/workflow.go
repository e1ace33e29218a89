package model

// NodeKind tags the behavior of a workflow node.
type NodeKind string

const (
	NodeStart        NodeKind = "start"
	NodeCondition    NodeKind = "condition"
	NodeRuleSet      NodeKind = "rule_set"
	NodeAction       NodeKind = "action"
	NodeDataSource   NodeKind = "data_source"
	NodeDecision     NodeKind = "decision"
	NodeEnd          NodeKind = "end"
	NodeValidation   NodeKind = "validation"
	NodeBatchProcess NodeKind = "batch_process"
)

// NodeKinds lists every supported node kind.
var NodeKinds = []NodeKind{
	NodeStart, NodeCondition, NodeRuleSet, NodeAction, NodeDataSource,
	NodeDecision, NodeEnd, NodeValidation, NodeBatchProcess,
}

// IsValid reports whether k is a known node kind.
func (k NodeKind) IsValid() bool {
	for _, known := range NodeKinds {
		if k == known {
			return true
		}
	}
	return false
}

// OwnsRules reports whether nodes of this kind carry rules.
func (k NodeKind) OwnsRules() bool {
	switch k {
	case NodeCondition, NodeRuleSet, NodeDecision, NodeValidation, NodeBatchProcess:
		return true
	}
	return false
}

// Branch labels used on connections leaving branch-capable nodes.
const (
	LabelTrue    = "true"
	LabelFalse   = "false"
	LabelPass    = "pass"
	LabelFail    = "fail"
	LabelSuccess = "success"
	LabelError   = "error"
)

// ConfigMode is the node config key selecting how a rule_set or batch_process
// node leaves: ModePassFail branches on pass/fail labels.
const (
	ConfigMode   = "mode"
	ModePassFail = "pass_fail"
)

// Position is the layout coordinate of a node. It has no semantic meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the per-kind payload of a node.
type NodeData struct {
	Label      string         `json:"label"`
	Rules      []Rule         `json:"rules,omitempty"`
	DataSource string         `json:"dataSource,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
	Action     *Action        `json:"action,omitempty"`
}

// WorkflowNode is a vertex of the decision graph.
type WorkflowNode struct {
	ID       string   `json:"id"`
	Type     NodeKind `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// IsBranching reports whether the node chooses among outgoing edges by label.
func (n *WorkflowNode) IsBranching() bool {
	switch n.Type {
	case NodeCondition, NodeDecision, NodeValidation:
		return true
	case NodeRuleSet, NodeBatchProcess:
		return n.IsPassFail()
	}
	return false
}

// IsPassFail reports whether a rule_set or batch_process node is configured
// to branch on pass/fail.
func (n *WorkflowNode) IsPassFail() bool {
	mode, _ := n.Data.Config[ConfigMode].(string)
	return mode == ModePassFail
}

// WorkflowConnection is a directed, optionally labeled edge between two nodes.
// Condition is an optional boolean guard expression over the record.
type WorkflowConnection struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Label     string `json:"label,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// DataRequirements declares which applicant fields a workflow expects.
type DataRequirements struct {
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`
	External []string `json:"external,omitempty"`
}

// Status is the lifecycle state of a workflow definition.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusPublished || s == StatusArchived
}

// WorkflowDefinition is a versioned decision graph.
type WorkflowDefinition struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Description      string               `json:"description,omitempty"`
	Version          int                  `json:"version"`
	Nodes            []WorkflowNode       `json:"nodes"`
	Connections      []WorkflowConnection `json:"connections"`
	DataRequirements DataRequirements     `json:"dataRequirements,omitzero"`
	Metadata         map[string]string    `json:"metadata,omitempty"`
	Status           Status               `json:"status"`
}

// Node returns the node with the given id.
func (w *WorkflowDefinition) Node(id string) (*WorkflowNode, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// NodesOfKind returns the nodes of the given kind in declaration order.
func (w *WorkflowDefinition) NodesOfKind(kind NodeKind) []*WorkflowNode {
	var out []*WorkflowNode
	for i := range w.Nodes {
		if w.Nodes[i].Type == kind {
			out = append(out, &w.Nodes[i])
		}
	}
	return out
}

// Outgoing returns the connections leaving the node, in declaration order.
func (w *WorkflowDefinition) Outgoing(nodeID string) []WorkflowConnection {
	var out []WorkflowConnection
	for _, c := range w.Connections {
		if c.Source == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// IsPublished reports whether the definition may run in production evaluation.
func (w *WorkflowDefinition) IsPublished() bool {
	return w.Status == StatusPublished
}

// Clone returns a deep copy of the definition.
func (w *WorkflowDefinition) Clone() *WorkflowDefinition {
	if w == nil {
		return nil
	}
	out := *w
	if w.Nodes != nil {
		out.Nodes = make([]WorkflowNode, len(w.Nodes))
		for i, n := range w.Nodes {
			n.Data.Rules = CloneRules(n.Data.Rules)
			if n.Data.Config != nil {
				n.Data.Config = CloneValue(n.Data.Config).(map[string]any)
			}
			if n.Data.Action != nil {
				a := *n.Data.Action
				a.Value = CloneValue(a.Value)
				n.Data.Action = &a
			}
			out.Nodes[i] = n
		}
	}
	if w.Connections != nil {
		out.Connections = append([]WorkflowConnection(nil), w.Connections...)
	}
	out.DataRequirements = DataRequirements{
		Required: cloneStrings(w.DataRequirements.Required),
		Optional: cloneStrings(w.DataRequirements.Optional),
		External: cloneStrings(w.DataRequirements.External),
	}
	if w.Metadata != nil {
		out.Metadata = make(map[string]string, len(w.Metadata))
		for k, v := range w.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// NewVersion returns a draft copy of the definition with the next version
// number. The receiver is left untouched.
func (w *WorkflowDefinition) NewVersion() *WorkflowDefinition {
	next := w.Clone()
	next.Version = w.Version + 1
	next.Status = StatusDraft
	return next
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// UsesPassFail reports whether a rule_set or batch_process node leaves by
// pass/fail labels, either because its config says so or because one of its
// outgoing connections carries such a label.
func (w *WorkflowDefinition) UsesPassFail(n *WorkflowNode) bool {
	if n.Type != NodeRuleSet && n.Type != NodeBatchProcess {
		return false
	}
	if n.IsPassFail() {
		return true
	}
	for _, c := range w.Connections {
		if c.Source == n.ID && (c.Label == LabelPass || c.Label == LabelFail) {
			return true
		}
	}
	return false
}
