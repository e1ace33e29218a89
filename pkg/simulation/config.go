package simulation

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrInvalidConfig is returned for an invalid harness configuration.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config contains configuration for the simulation harness.
type Config struct {
	// Workers is the number of goroutines evaluating cases in RunAll.
	// Default: runtime.NumCPU().
	Workers int

	// ScoreTolerance is the largest score difference still treated as equal.
	// Default: 1e-9.
	ScoreTolerance float64
}

// DefaultConfig returns the default harness configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:        runtime.NumCPU(),
		ScoreTolerance: 1e-9,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.ScoreTolerance < 0 {
		return fmt.Errorf("%w: score tolerance cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// WithWorkers sets the worker count. Zero or less selects runtime.NumCPU().
func (c *Config) WithWorkers(n int) *Config {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	c.Workers = n
	return c
}

// WithScoreTolerance sets the score comparison tolerance.
func (c *Config) WithScoreTolerance(tol float64) *Config {
	c.ScoreTolerance = tol
	return c
}
