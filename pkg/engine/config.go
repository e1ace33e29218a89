package engine

import (
	"fmt"
)

// Config contains configuration for the decision engine.
type Config struct {
	// StepBudgetFactor bounds a workflow traversal to StepBudgetFactor × node
	// count transitions. Cyclic workflows that exceed it end in review.
	// Default: 4.
	StepBudgetFactor int

	// EnableTrace records a per-rule trace on every DecisionResult.
	// Default: false.
	EnableTrace bool

	// StrictRequiredFields aborts execution with decision review when a field
	// listed in the workflow's required data is absent. When false the
	// absence is only reported as a warning.
	// Default: false.
	StrictRequiredFields bool

	// ValidationCacheSize is the number of validation results memoised by
	// content hash.
	// Default: 256.
	ValidationCacheSize int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		StepBudgetFactor:     4,
		EnableTrace:          false,
		StrictRequiredFields: false,
		ValidationCacheSize:  256,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.StepBudgetFactor < 1 {
		return fmt.Errorf("%w: step budget factor must be at least 1", ErrInvalidConfig)
	}
	if c.ValidationCacheSize < 0 {
		return fmt.Errorf("%w: validation cache size cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// StepBudget returns the maximum number of steps for a workflow of n nodes.
func (c *Config) StepBudget(nodeCount int) int {
	if nodeCount < 1 {
		nodeCount = 1
	}
	return c.StepBudgetFactor * nodeCount
}

// WithStepBudgetFactor sets the step budget factor.
func (c *Config) WithStepBudgetFactor(factor int) *Config {
	c.StepBudgetFactor = factor
	return c
}

// WithTrace enables or disables rule tracing.
func (c *Config) WithTrace(enabled bool) *Config {
	c.EnableTrace = enabled
	return c
}

// WithStrictRequiredFields enables or disables strict required-field checks.
func (c *Config) WithStrictRequiredFields(strict bool) *Config {
	c.StrictRequiredFields = strict
	return c
}

// WithValidationCacheSize sets the validation cache size.
func (c *Config) WithValidationCacheSize(size int) *Config {
	c.ValidationCacheSize = size
	return c
}
