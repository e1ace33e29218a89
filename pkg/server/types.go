package server

import (
	"encoding/json"

	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/model"
	"mercator-hq/arbiter/pkg/simulation"
)

// ExecuteRequest runs a workflow against one applicant. Exactly one of
// Workflow and WorkflowID must be set.
type ExecuteRequest struct {
	Workflow   json.RawMessage     `json:"workflow,omitempty"`
	WorkflowID string              `json:"workflowId,omitempty"`
	Data       model.ApplicantData `json:"data"`
}

// ExecuteResponse is the body of a successful execute or evaluate call.
type ExecuteResponse struct {
	ExecutionID     string                `json:"executionId"`
	WorkflowID      string                `json:"workflowId,omitempty"`
	WorkflowVersion int                   `json:"workflowVersion,omitempty"`
	Result          *model.DecisionResult `json:"result"`

	// EvidenceID is the audit record id when evidence recording is on.
	EvidenceID string `json:"evidenceId,omitempty"`
}

// EvaluateRequest evaluates a standalone rule set. Rules accepts either a
// list or an object with a rules key.
type EvaluateRequest struct {
	Rules json.RawMessage     `json:"rules"`
	Data  model.ApplicantData `json:"data"`

	// RuleSetID names the rule set in metrics and evidence.
	RuleSetID string `json:"ruleSetId,omitempty"`
}

// SimulateRequest runs test cases against a workflow or a rule set.
type SimulateRequest struct {
	Workflow   json.RawMessage       `json:"workflow,omitempty"`
	WorkflowID string                `json:"workflowId,omitempty"`
	Rules      json.RawMessage       `json:"rules,omitempty"`
	TestCases  []simulation.TestCase `json:"testCases"`
}

// WorkflowSummary is one entry of the workflow listing.
type WorkflowSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Version     int          `json:"version"`
	Status      model.Status `json:"status"`
	Description string       `json:"description,omitempty"`
	Nodes       int          `json:"nodes"`
}

// WorkflowList is the body of GET /v1/workflows.
type WorkflowList struct {
	Workflows []WorkflowSummary `json:"workflows"`
	Count     int               `json:"count"`
}

// EvidenceList is the body of GET /v1/evidence.
type EvidenceList struct {
	Records []*evidence.Record `json:"records"`
	Count   int                `json:"count"`
	Total   int64              `json:"total"`
}

func summarize(def *model.WorkflowDefinition) WorkflowSummary {
	return WorkflowSummary{
		ID:          def.ID,
		Name:        def.Name,
		Version:     def.Version,
		Status:      def.Status,
		Description: def.Description,
		Nodes:       len(def.Nodes),
	}
}
