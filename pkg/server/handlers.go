package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/evidence"
	"mercator-hq/arbiter/pkg/evidence/query"
	"mercator-hq/arbiter/pkg/evidence/recorder"
	"mercator-hq/arbiter/pkg/model"
	"mercator-hq/arbiter/pkg/registry"
	"mercator-hq/arbiter/pkg/simulation"
	"mercator-hq/arbiter/pkg/telemetry/logging"
	"mercator-hq/arbiter/pkg/telemetry/tracing"
	"mercator-hq/arbiter/pkg/validator"
)

// handleValidate checks a definition and always answers 200 with
// {isValid, errors}, so that an editor can show decode problems alongside
// graph problems.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if !json.Valid(body) {
		writeError(w, r, s.logger, badRequest("request body is not valid JSON", nil))
		return
	}

	var result validator.Result
	def, err := codec.DecodeWorkflow(body, codec.FormatJSON)
	if err != nil {
		result = validator.Result{IsValid: false, Errors: []string{err.Error()}}
	} else {
		result = s.engine.Validate(def)
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	s.metrics.RecordValidation(result.IsValid)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if req.Data == nil {
		writeError(w, r, s.logger, badRequest("data is required", nil))
		return
	}

	def, err := s.resolveWorkflow(r.Context(), req.Workflow, req.WorkflowID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := requirePublished(def); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	ctx := logging.WithExecutionID(r.Context(), logging.RequestID(r.Context()))
	ctx = logging.WithWorkflowID(ctx, def.ID)
	ctx, span := s.tracer.Start(ctx, "workflow.execute")
	defer span.End()
	tracing.SetWorkflowAttributes(span, def)

	start := time.Now()
	result, err := s.engine.Execute(ctx, def, req.Data)
	if err != nil {
		tracing.SetError(span, err)
		writeError(w, r.WithContext(ctx), s.logger, err)
		return
	}
	tracing.SetResultAttributes(span, result)

	evidenceID := s.observe(ctx, evidence.ModeWorkflow, def, "", req.Data, result, time.Since(start))
	writeJSON(w, http.StatusOK, ExecuteResponse{
		ExecutionID:     logging.ExecutionID(ctx),
		WorkflowID:      def.ID,
		WorkflowVersion: def.Version,
		Result:          result,
		EvidenceID:      evidenceID,
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if len(req.Rules) == 0 {
		writeError(w, r, s.logger, badRequest("rules are required", nil))
		return
	}
	if req.Data == nil {
		writeError(w, r, s.logger, badRequest("data is required", nil))
		return
	}

	rules, err := codec.DecodeRules(req.Rules, codec.FormatJSON)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if result := validator.ValidateRules(rules); !result.IsValid {
		writeError(w, r, s.logger, invalidDefinition("rules failed validation", result.Errors))
		return
	}

	ctx := logging.WithExecutionID(r.Context(), logging.RequestID(r.Context()))
	ctx, span := s.tracer.Start(ctx, "rules.evaluate")
	defer span.End()

	start := time.Now()
	result := s.engine.EvaluateRuleSet(rules, req.Data)
	tracing.SetResultAttributes(span, result)

	evidenceID := s.observe(ctx, evidence.ModeRules, nil, req.RuleSetID, req.Data, result, time.Since(start))
	writeJSON(w, http.StatusOK, ExecuteResponse{
		ExecutionID: logging.ExecutionID(ctx),
		Result:      result,
		EvidenceID:  evidenceID,
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	target, err := s.resolveTarget(r.Context(), &req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "simulation.run")
	defer span.End()
	if target.Workflow != nil {
		tracing.SetWorkflowAttributes(span, target.Workflow)
	}

	report := s.harness.RunAll(ctx, req.TestCases, target)
	s.metrics.RecordSimulation(report.Stats.Passed, report.Stats.Failed, report.Stats.Errored, report.Stats.PassRate)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	list := WorkflowList{Workflows: []WorkflowSummary{}}
	if s.catalog != nil {
		for _, def := range s.catalog.List() {
			list.Workflows = append(list.Workflows, summarize(def))
		}
	}
	list.Count = len(list.Workflows)
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := s.lookupWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	data, err := codec.EncodeWorkflow(def, codec.FormatJSON)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleQueryEvidence(w http.ResponseWriter, r *http.Request) {
	q, err := parseEvidenceQuery(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	query.ApplyDefaults(q)
	if err := query.Validate(q); err != nil {
		writeError(w, r, s.logger, badRequest("invalid evidence query", err))
		return
	}

	records, err := s.evidence.Query(r.Context(), q)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	total, err := s.evidence.Count(r.Context(), q)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if records == nil {
		records = []*evidence.Record{}
	}
	writeJSON(w, http.StatusOK, EvidenceList{Records: records, Count: len(records), Total: total})
}

// observe feeds a decision to metrics and the evidence recorder and
// returns the evidence record id, if any.
func (s *Server) observe(ctx context.Context, mode evidence.Mode, def *model.WorkflowDefinition, ruleSetID string, input model.ApplicantData, result *model.DecisionResult, duration time.Duration) string {
	workflowID := ruleSetID
	if def != nil {
		workflowID = def.ID
	}
	s.metrics.RecordDecision(string(mode), workflowID, result, duration)
	s.logger.InfoContext(ctx, "decision made",
		"mode", mode,
		"decision", result.Decision,
		"executed_rules", len(result.ExecutedRules),
		"duration_ms", duration.Milliseconds(),
	)

	if s.recorder == nil {
		return ""
	}
	id, err := s.recorder.Record(ctx, recorder.Entry{
		ExecutionID: logging.ExecutionID(ctx),
		Workflow:    def,
		RuleSetID:   ruleSetID,
		Input:       input,
		Result:      result,
	})
	if err != nil && !errors.Is(err, recorder.ErrBufferFull) {
		s.logger.WarnContext(ctx, "decision not recorded", "error", err)
	}
	return id
}

// resolveWorkflow decodes an inline definition or looks up id.
func (s *Server) resolveWorkflow(ctx context.Context, inline json.RawMessage, id string) (*model.WorkflowDefinition, error) {
	switch {
	case len(inline) > 0 && id != "":
		return nil, badRequest("workflow and workflowId are mutually exclusive", nil)
	case len(inline) > 0:
		return codec.DecodeWorkflow(inline, codec.FormatJSON)
	case id != "":
		return s.lookupWorkflow(ctx, id)
	}
	return nil, badRequest("workflow or workflowId is required", nil)
}

// requirePublished rejects drafts and archived versions. Those run only
// through /v1/simulate.
func requirePublished(def *model.WorkflowDefinition) error {
	if def.Status == model.StatusPublished {
		return nil
	}
	return invalidDefinition(
		fmt.Sprintf("workflow %q version %d is %s; only published definitions can be executed", def.ID, def.Version, def.Status),
		[]string{"use /v1/simulate to run draft definitions"},
	)
}

// lookupWorkflow returns the registry's published version of id, falling
// back to the definition catalog.
func (s *Server) lookupWorkflow(ctx context.Context, id string) (*model.WorkflowDefinition, error) {
	if s.registry != nil {
		def, err := s.registry.Published(ctx, id)
		if err == nil {
			return def, nil
		}
		if !errors.Is(err, registry.ErrNotFound) {
			return nil, err
		}
	}
	if s.catalog != nil {
		if def, ok := s.catalog.Get(id); ok {
			return def, nil
		}
	}
	return nil, notFound(fmt.Sprintf("workflow %q not found", id), nil)
}

func (s *Server) resolveTarget(ctx context.Context, req *SimulateRequest) (simulation.Target, error) {
	hasWorkflow := len(req.Workflow) > 0 || req.WorkflowID != ""
	switch {
	case hasWorkflow && len(req.Rules) > 0:
		return simulation.Target{}, badRequest("workflow and rules are mutually exclusive", nil)
	case len(req.Rules) > 0:
		rules, err := codec.DecodeRules(req.Rules, codec.FormatJSON)
		if err != nil {
			return simulation.Target{}, err
		}
		return simulation.RulesTarget(rules), nil
	case hasWorkflow:
		def, err := s.resolveWorkflow(ctx, req.Workflow, req.WorkflowID)
		if err != nil {
			return simulation.Target{}, err
		}
		return simulation.WorkflowTarget(def), nil
	}
	return simulation.Target{}, badRequest("workflow, workflowId or rules is required", nil)
}

// decodeBody decodes a JSON request body into v. Unknown fields are
// rejected.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty", nil)
		}
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return badRequest("malformed JSON body", err)
	}
	return nil
}

func parseEvidenceQuery(r *http.Request) (*evidence.Query, error) {
	params := r.URL.Query()
	q := &evidence.Query{
		WorkflowID: params.Get("workflowId"),
		Decision:   params.Get("decision"),
		Mode:       evidence.Mode(params.Get("mode")),
		SortOrder:  params.Get("order"),
	}
	if q.Mode != "" && !q.Mode.IsValid() {
		return nil, badRequest(fmt.Sprintf("invalid mode %q", q.Mode), nil)
	}

	for name, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		if v := params.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, badRequest(fmt.Sprintf("invalid %s %q", name, v), nil)
			}
			*dst = n
		}
	}
	for name, dst := range map[string]**time.Time{"since": &q.StartTime, "until": &q.EndTime} {
		if v := params.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, badRequest(fmt.Sprintf("invalid %s %q: want RFC 3339", name, v), nil)
			}
			*dst = &t
		}
	}
	return q, nil
}
