package engine

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/arbiter/pkg/model"
	"mercator-hq/arbiter/pkg/validator"
)

// Evaluator is the main interface for decision evaluation.
type Evaluator interface {
	// EvaluateRule evaluates a single rule against a record.
	EvaluateRule(rule *model.Rule, record model.ApplicantData) RuleOutcome

	// EvaluateRuleSet evaluates a standalone rule set.
	EvaluateRuleSet(rules []model.Rule, record model.ApplicantData) *model.DecisionResult

	// Execute runs a validated workflow.
	Execute(ctx context.Context, def *model.WorkflowDefinition, record model.ApplicantData) (*model.DecisionResult, error)
}

// DecisionEngine evaluates rule sets and workflow graphs. Evaluation never
// mutates its inputs and shares no mutable state between calls, so a single
// engine may evaluate many records concurrently.
type DecisionEngine struct {
	config      *Config
	logger      *slog.Logger
	matcher     ConditionMatcher
	actions     *actionExecutor
	exprs       *ExpressionEvaluator
	validations *validator.Cache
}

var _ Evaluator = (*DecisionEngine)(nil)

// NewDecisionEngine creates a decision engine. A nil config uses
// DefaultConfig and a nil logger falls back to slog.Default().
func NewDecisionEngine(config *Config, logger *slog.Logger) (*DecisionEngine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	exprs := NewExpressionEvaluator()
	return &DecisionEngine{
		config:      config,
		logger:      logger,
		matcher:     NewDefaultMatcher(logger),
		actions:     newActionExecutor(logger, exprs),
		exprs:       exprs,
		validations: validator.NewCache(validator.New(logger), config.ValidationCacheSize),
	}, nil
}

// WithMatcher replaces the condition matcher.
func (e *DecisionEngine) WithMatcher(m ConditionMatcher) *DecisionEngine {
	if m != nil {
		e.matcher = m
	}
	return e
}

// Config returns the engine configuration.
func (e *DecisionEngine) Config() *Config {
	return e.config
}

// Validate validates a workflow through the engine's content-hash cache.
func (e *DecisionEngine) Validate(def *model.WorkflowDefinition) validator.Result {
	return e.validations.Validate(def)
}

// EvaluateCondition evaluates one condition against a record.
func (e *DecisionEngine) EvaluateCondition(condition *model.Condition, record model.ApplicantData) (bool, []string) {
	return e.matcher.Match(condition, RecordSource(record))
}
