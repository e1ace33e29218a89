package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"mercator-hq/arbiter/pkg/model"
)

// Execute runs the workflow against record, starting at its start node and
// following labeled connections until an end node is reached.
//
// The workflow must pass validation; otherwise a *NotValidatedError is
// returned and nothing runs. Every other problem met during traversal (a
// missing branch edge, an exhausted step budget, cancellation, a panic in a
// node handler) is recorded in the result's Errors and forces decision review.
func (e *DecisionEngine) Execute(ctx context.Context, def *model.WorkflowDefinition, record model.ApplicantData) (*model.DecisionResult, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}

	if validation := e.validations.Validate(def); !validation.IsValid {
		return nil, &NotValidatedError{
			WorkflowID: def.ID,
			Version:    def.Version,
			Errors:     validation.Errors,
		}
	}

	result := e.run(ctx, def, record)

	e.logger.Debug("workflow executed",
		"workflow_id", def.ID,
		"version", def.Version,
		"decision", result.Decision,
		"steps", len(result.Path),
		"executed_rules", len(result.ExecutedRules),
		"errors", len(result.Errors),
		"duration_ms", result.ExecutionTimeMs,
	)
	return result, nil
}

// run traverses the graph without checking validity first. Execute is the
// public entry point; run is kept separate so the runtime safety nets can be
// exercised on graphs validation would reject.
func (e *DecisionEngine) run(ctx context.Context, def *model.WorkflowDefinition, record model.ApplicantData) (result *model.DecisionResult) {
	state := newEvaluationState(record)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic during workflow execution",
				"workflow_id", def.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			state.warn("internal error: %v", r)
			state.fail(model.ErrInternal)
			result = state.result()
		}
	}()

	if !e.checkRequiredFields(def, state) {
		return state.result()
	}

	starts := def.NodesOfKind(model.NodeStart)
	if len(starts) != 1 {
		state.warn("workflow has %d start nodes", len(starts))
		state.fail(model.ErrMissingEdge)
		return state.result()
	}

	budget := e.config.StepBudget(len(def.Nodes))
	current := starts[0]
	for steps := 1; ; steps++ {
		if steps > budget {
			state.warn("step budget of %d exhausted at node %s", budget, current.ID)
			state.fail(model.ErrCycleLimitExceeded)
			return state.result()
		}
		if ctx.Err() != nil {
			state.fail(model.ErrCancelled)
			return state.result()
		}

		state.path = append(state.path, current.ID)
		next, done := e.visit(def, current, state)
		if done {
			return state.result()
		}
		current = next
	}
}

// visit executes one node and returns the next node, or done when the
// traversal is over (an end node was reached or a runtime error occurred).
func (e *DecisionEngine) visit(def *model.WorkflowDefinition, node *model.WorkflowNode, state *evaluationState) (*model.WorkflowNode, bool) {
	switch node.Type {
	case model.NodeStart, model.NodeDataSource:
		return e.follow(def, node, state)

	case model.NodeCondition, model.NodeDecision:
		outcome := e.applyRuleSet(state, node.ID, node.Data.Rules)
		label := model.LabelFalse
		if outcome.matched {
			label = model.LabelTrue
		}
		return e.branch(def, node, state, label)

	case model.NodeValidation:
		outcome := e.applyRuleSet(state, node.ID, node.Data.Rules)
		label := validationLabel(def, node.ID, outcome.matched)
		return e.branch(def, node, state, label)

	case model.NodeRuleSet, model.NodeBatchProcess:
		outcome := e.applyRuleSet(state, node.ID, node.Data.Rules)
		if !def.UsesPassFail(node) {
			return e.follow(def, node, state)
		}
		label := model.LabelFail
		if outcome.terminal {
			label = model.LabelPass
		}
		return e.branch(def, node, state, label)

	case model.NodeAction:
		if node.Data.Action == nil {
			state.warn("node %s: no action configured", node.ID)
		} else if err := e.actions.apply(state, "", node.Data.Action); err != nil {
			state.warn("node %s: %v", node.ID, err)
		}
		return e.follow(def, node, state)

	case model.NodeEnd:
		return nil, true

	default:
		state.warn("node %s: unknown node type %q", node.ID, node.Type)
		state.fail(model.ErrInternal)
		return nil, true
	}
}

// follow takes the first outgoing connection whose guard holds.
func (e *DecisionEngine) follow(def *model.WorkflowDefinition, node *model.WorkflowNode, state *evaluationState) (*model.WorkflowNode, bool) {
	for _, c := range def.Outgoing(node.ID) {
		if !e.guardHolds(c, state) {
			continue
		}
		return e.target(def, c, state)
	}
	state.warn("node %s: no outgoing connection to follow", node.ID)
	state.fail(model.ErrMissingEdge)
	return nil, true
}

// branch takes the outgoing connection carrying label.
func (e *DecisionEngine) branch(def *model.WorkflowDefinition, node *model.WorkflowNode, state *evaluationState, label string) (*model.WorkflowNode, bool) {
	for _, c := range def.Outgoing(node.ID) {
		if c.Label != label || !e.guardHolds(c, state) {
			continue
		}
		return e.target(def, c, state)
	}
	state.warn("node %s: no %q branch", node.ID, label)
	state.fail(model.ErrMissingBranchEdge)
	return nil, true
}

func (e *DecisionEngine) target(def *model.WorkflowDefinition, c model.WorkflowConnection, state *evaluationState) (*model.WorkflowNode, bool) {
	next, ok := def.Node(c.Target)
	if !ok {
		state.warn("connection %s: target %q does not exist", c.ID, c.Target)
		state.fail(model.ErrMissingEdge)
		return nil, true
	}
	return next, false
}

func (e *DecisionEngine) guardHolds(c model.WorkflowConnection, state *evaluationState) bool {
	if c.Condition == "" {
		return true
	}
	ok, err := e.exprs.EvaluateBool(c.Condition, state.env())
	if err != nil {
		state.warn("connection %s: %v", c.ID, err)
		return false
	}
	return ok
}

// checkRequiredFields reports required fields missing from the record. In
// strict mode a missing field stops execution.
func (e *DecisionEngine) checkRequiredFields(def *model.WorkflowDefinition, state *evaluationState) bool {
	missing := 0
	for _, field := range def.DataRequirements.Required {
		if _, ok := lookupField(state.record, field); !ok {
			state.warn("missing required field: %s", field)
			missing++
		}
	}
	if missing > 0 && e.config.StrictRequiredFields {
		state.fail(model.ErrMissingRequiredField)
		return false
	}
	return true
}

// validationLabel picks success/error when the node uses them, true/false otherwise.
func validationLabel(def *model.WorkflowDefinition, nodeID string, matched bool) string {
	useSuccess := false
	for _, c := range def.Outgoing(nodeID) {
		if c.Label == model.LabelSuccess || c.Label == model.LabelError {
			useSuccess = true
			break
		}
	}
	switch {
	case useSuccess && matched:
		return model.LabelSuccess
	case useSuccess:
		return model.LabelError
	case matched:
		return model.LabelTrue
	default:
		return model.LabelFalse
	}
}

// Summary renders a one-line description of a result for logs and CLI output.
func Summary(r *model.DecisionResult) string {
	score := "-"
	if v, ok := r.ScoreValue(); ok {
		score = fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf("decision=%s score=%s flags=%v rules=%v errors=%v", r.Decision, score, r.Flags, r.ExecutedRules, r.Errors)
}
