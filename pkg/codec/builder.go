package codec

import (
	"errors"
	"fmt"
	"time"

	"mercator-hq/arbiter/pkg/model"
)

// builder turns decoded documents into model types. Problems are collected
// rather than returned on the first one.
type builder struct {
	source string
	errs   []error
}

func newBuilder(source string) *builder {
	return &builder{source: source}
}

func (b *builder) fail(path, format string, args ...any) {
	b.errs = append(b.errs, &DecodeError{
		Source:  b.source,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (b *builder) err() error {
	return errors.Join(b.errs...)
}

func (b *builder) buildWorkflow(doc *workflowDocument) *model.WorkflowDefinition {
	def := &model.WorkflowDefinition{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		Status:      model.Status(doc.Status),
	}
	if def.Version == 0 {
		def.Version = 1
	}
	if def.Status == "" {
		def.Status = model.StatusDraft
	}
	if !def.Status.IsValid() {
		b.fail("status", "unknown status %q", doc.Status)
	}

	for i := range doc.Nodes {
		def.Nodes = append(def.Nodes, b.buildNode(fmt.Sprintf("nodes[%d]", i), &doc.Nodes[i]))
	}
	for _, c := range doc.Connections {
		def.Connections = append(def.Connections, model.WorkflowConnection{
			ID:        c.ID,
			Source:    c.Source,
			Target:    c.Target,
			Label:     c.Label,
			Condition: c.Condition,
		})
	}
	if doc.DataRequirements != nil {
		def.DataRequirements = model.DataRequirements{
			Required: nilIfEmpty(doc.DataRequirements.Required),
			Optional: nilIfEmpty(doc.DataRequirements.Optional),
			External: nilIfEmpty(doc.DataRequirements.External),
		}
	}
	if len(doc.Metadata) > 0 {
		def.Metadata = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			def.Metadata[k] = v
		}
	}
	return def
}

func (b *builder) buildNode(path string, doc *nodeDocument) model.WorkflowNode {
	node := model.WorkflowNode{
		ID:       doc.ID,
		Type:     model.NodeKind(doc.Type),
		Position: model.Position{X: doc.Position.X, Y: doc.Position.Y},
		Data: model.NodeData{
			Label:      doc.Data.Label,
			DataSource: doc.Data.DataSource,
		},
	}
	node.Data.Rules = b.buildRules(path+".data.rules", doc.Data.Rules)
	if len(doc.Data.Config) > 0 {
		node.Data.Config, _ = model.NormalizeValue(doc.Data.Config).(map[string]any)
	}
	if doc.Data.Action != nil {
		action := buildAction(doc.Data.Action)
		node.Data.Action = &action
	}
	return node
}

func (b *builder) buildRules(path string, docs []ruleDocument) []model.Rule {
	var rules []model.Rule
	for i := range docs {
		rules = append(rules, b.buildRule(fmt.Sprintf("%s[%d]", path, i), &docs[i]))
	}
	return rules
}

func (b *builder) buildRule(path string, doc *ruleDocument) model.Rule {
	rule := model.Rule{
		ID:              doc.ID,
		Name:            doc.Name,
		Description:     doc.Description,
		Priority:        doc.Priority,
		Enabled:         doc.Enabled == nil || *doc.Enabled,
		LogicalOperator: model.LogicalOperator(doc.LogicalOperator),
	}
	if rule.LogicalOperator == "" {
		rule.LogicalOperator = model.LogicalAnd
	}

	for _, c := range doc.Conditions {
		rule.Conditions = append(rule.Conditions, model.Condition{
			ID:          c.ID,
			Field:       c.Field,
			Operator:    model.Operator(c.Operator),
			Value:       model.NormalizeValue(c.Value),
			DataType:    model.DataType(c.DataType),
			Description: c.Description,
		})
	}
	for i := range doc.Actions {
		rule.Actions = append(rule.Actions, buildAction(&doc.Actions[i]))
	}

	if doc.Metadata != nil {
		rule.Metadata.Version = doc.Metadata.Version
		rule.Metadata.CreatedAt = b.parseTime(path+".metadata.createdAt", doc.Metadata.CreatedAt)
		rule.Metadata.UpdatedAt = b.parseTime(path+".metadata.updatedAt", doc.Metadata.UpdatedAt)
	}
	return rule
}

func buildAction(doc *actionDocument) model.Action {
	return model.Action{
		Type:        model.ActionType(doc.Type),
		Value:       model.NormalizeValue(doc.Value),
		OutputField: doc.OutputField,
		Message:     doc.Message,
	}
}

func (b *builder) parseTime(path, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		b.fail(path, "invalid timestamp %q (expected RFC 3339)", s)
		return time.Time{}
	}
	return t.UTC()
}

func nilIfEmpty(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}

// The reverse direction, used by the encoders.

func workflowToDocument(def *model.WorkflowDefinition) *workflowDocument {
	doc := &workflowDocument{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Version:     def.Version,
		Status:      string(def.Status),
		Nodes:       make([]nodeDocument, 0, len(def.Nodes)),
		Connections: make([]connectionDocument, 0, len(def.Connections)),
		Metadata:    def.Metadata,
	}
	for _, n := range def.Nodes {
		nd := nodeDocument{
			ID:       n.ID,
			Type:     string(n.Type),
			Position: positionDocument{X: n.Position.X, Y: n.Position.Y},
			Data: nodeDataDocument{
				Label:      n.Data.Label,
				Rules:      rulesToDocuments(n.Data.Rules),
				DataSource: n.Data.DataSource,
				Config:     n.Data.Config,
			},
		}
		if n.Data.Action != nil {
			ad := actionToDocument(*n.Data.Action)
			nd.Data.Action = &ad
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, c := range def.Connections {
		doc.Connections = append(doc.Connections, connectionDocument{
			ID:        c.ID,
			Source:    c.Source,
			Target:    c.Target,
			Label:     c.Label,
			Condition: c.Condition,
		})
	}
	req := def.DataRequirements
	if len(req.Required)+len(req.Optional)+len(req.External) > 0 {
		doc.DataRequirements = &dataReqDocument{
			Required: req.Required,
			Optional: req.Optional,
			External: req.External,
		}
	}
	return doc
}

func rulesToDocuments(rules []model.Rule) []ruleDocument {
	if len(rules) == 0 {
		return nil
	}
	docs := make([]ruleDocument, 0, len(rules))
	for _, r := range rules {
		enabled := r.Enabled
		rd := ruleDocument{
			ID:              r.ID,
			Name:            r.Name,
			Description:     r.Description,
			Priority:        r.Priority,
			Enabled:         &enabled,
			LogicalOperator: string(r.LogicalOperator),
			Conditions:      make([]conditionDocument, 0, len(r.Conditions)),
			Actions:         make([]actionDocument, 0, len(r.Actions)),
		}
		for _, c := range r.Conditions {
			rd.Conditions = append(rd.Conditions, conditionDocument{
				ID:          c.ID,
				Field:       c.Field,
				Operator:    string(c.Operator),
				Value:       model.NormalizeValue(c.Value),
				DataType:    string(c.DataType),
				Description: c.Description,
			})
		}
		for _, a := range r.Actions {
			rd.Actions = append(rd.Actions, actionToDocument(a))
		}
		if m := r.Metadata; !m.CreatedAt.IsZero() || !m.UpdatedAt.IsZero() || m.Version != 0 {
			rd.Metadata = &ruleMetaDocument{
				CreatedAt: formatTime(m.CreatedAt),
				UpdatedAt: formatTime(m.UpdatedAt),
				Version:   m.Version,
			}
		}
		docs = append(docs, rd)
	}
	return docs
}

func actionToDocument(a model.Action) actionDocument {
	return actionDocument{
		Type:        string(a.Type),
		Value:       model.NormalizeValue(a.Value),
		OutputField: a.OutputField,
		Message:     a.Message,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
