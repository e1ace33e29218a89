package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/arbiter/pkg/engine"
	"mercator-hq/arbiter/pkg/model"
)

// Harness runs test cases against an evaluator.
type Harness struct {
	evaluator engine.Evaluator
	config    *Config
	logger    *slog.Logger
	progress  func(done, total int)
}

// NewHarness creates a harness. A nil config uses DefaultConfig and a nil
// logger falls back to slog.Default().
func NewHarness(evaluator engine.Evaluator, config *Config, logger *slog.Logger) (*Harness, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{evaluator: evaluator, config: config, logger: logger}, nil
}

// RunTestCase runs one case. Evaluation problems, including a panic, are
// reported as StatusError; they never escape as an error return.
func (h *Harness) RunTestCase(ctx context.Context, tc TestCase, target Target) (result TestExecutionResult) {
	result = TestExecutionResult{
		CaseID:      tc.ID,
		Name:        tc.Name,
		Differences: []Difference{},
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in test case", "case_id", tc.ID, "panic", r)
			result.Status = StatusError
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.Duration = time.Since(start)
		result.DurationMs = milliseconds(result.Duration)
	}()

	if err := target.Validate(); err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}
	if tc.Expected.Decision == "" {
		result.Status = StatusError
		result.Error = ErrMissingExpectedDecision.Error()
		return result
	}

	actual, err := h.evaluate(ctx, tc.Input, target)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	result.Actual = actual
	result.Differences = compare(tc.Expected, actual, h.config.ScoreTolerance)
	if len(result.Differences) == 0 {
		result.Status = StatusPassed
	} else {
		result.Status = StatusFailed
	}

	h.logger.Debug("test case evaluated",
		"case_id", tc.ID,
		"status", result.Status,
		"decision", actual.Decision,
		"differences", len(result.Differences),
	)
	return result
}

func (h *Harness) evaluate(ctx context.Context, input model.ApplicantData, target Target) (*model.DecisionResult, error) {
	if target.Workflow != nil {
		return h.evaluator.Execute(ctx, target.Workflow, input)
	}
	return h.evaluator.EvaluateRuleSet(target.Rules, input), nil
}

// WithProgress sets a callback invoked after each completed case. It is
// called from the worker goroutines and must be safe for concurrent use.
func (h *Harness) WithProgress(fn func(done, total int)) *Harness {
	h.progress = fn
	return h
}

// RunAll runs cases over a pool of Workers goroutines. Cancelling ctx stops
// new cases from being handed out; cases already running finish normally and
// the rest are reported as StatusError with message "cancelled".
func (h *Harness) RunAll(ctx context.Context, cases []TestCase, target Target) *Report {
	started := time.Now()
	results := make([]TestExecutionResult, len(cases))
	submitted := make([]bool, len(cases))

	// In-flight evaluations are not interrupted by cancellation.
	evalCtx := context.WithoutCancel(ctx)

	workers := min(h.config.Workers, max(len(cases), 1))
	jobs := make(chan int)
	var (
		wg        sync.WaitGroup
		completed atomic.Int64
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = h.RunTestCase(evalCtx, cases[i], target)
				if h.progress != nil {
					h.progress(int(completed.Add(1)), len(cases))
				}
			}
		}()
	}

submit:
	for i := range cases {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break submit
		case jobs <- i:
			submitted[i] = true
		}
	}
	close(jobs)
	wg.Wait()

	for i, ok := range submitted {
		if !ok {
			results[i] = TestExecutionResult{
				CaseID:      cases[i].ID,
				Name:        cases[i].Name,
				Status:      StatusError,
				Differences: []Difference{},
				Error:       MessageCancelled,
			}
		}
	}

	report := &Report{Results: results, Stats: computeStats(results, submitted)}
	report.Stats.Elapsed = time.Since(started)
	report.Stats.ElapsedMs = milliseconds(report.Stats.Elapsed)

	h.logger.Info("simulation complete",
		"total", report.Stats.Total,
		"passed", report.Stats.Passed,
		"failed", report.Stats.Failed,
		"errored", report.Stats.Errored,
		"elapsed_ms", report.Stats.ElapsedMs,
	)
	return report
}

func computeStats(results []TestExecutionResult, ran []bool) Stats {
	stats := Stats{Total: len(results)}
	var total time.Duration
	timed := 0
	for i, r := range results {
		switch r.Status {
		case StatusPassed:
			stats.Passed++
		case StatusFailed:
			stats.Failed++
		default:
			stats.Errored++
		}
		if !ran[i] {
			continue
		}
		if timed == 0 || r.Duration < stats.MinTime {
			stats.MinTime = r.Duration
		}
		if r.Duration > stats.MaxTime {
			stats.MaxTime = r.Duration
		}
		total += r.Duration
		timed++
	}
	if stats.Total > 0 {
		stats.PassRate = float64(stats.Passed) / float64(stats.Total) * 100
	}
	if timed > 0 {
		stats.AvgTime = total / time.Duration(timed)
	}
	stats.AvgTimeMs = milliseconds(stats.AvgTime)
	stats.MinTimeMs = milliseconds(stats.MinTime)
	stats.MaxTimeMs = milliseconds(stats.MaxTime)
	return stats
}

// compare lists the differences between what was expected and what happened.
func compare(want Expectation, got *model.DecisionResult, tolerance float64) []Difference {
	diffs := []Difference{}

	if want.Decision != got.Decision {
		diffs = append(diffs, Difference{Field: "decision", Expected: want.Decision, Actual: got.Decision})
	}

	if want.Score != nil {
		actual, ok := got.ScoreValue()
		if !ok {
			diffs = append(diffs, Difference{Field: "score", Expected: *want.Score, Actual: nil})
		} else if math.Abs(actual-*want.Score) > tolerance {
			diffs = append(diffs, Difference{Field: "score", Expected: *want.Score, Actual: actual})
		}
	}

	if want.Flags != nil && !sameSet(want.Flags, got.Flags) {
		diffs = append(diffs, Difference{Field: "flags", Expected: want.Flags, Actual: got.Flags})
	}

	if want.RequiredDocuments != nil && !sameSet(want.RequiredDocuments, got.RequiredDocuments) {
		diffs = append(diffs, Difference{Field: "requiredDocuments", Expected: want.RequiredDocuments, Actual: got.RequiredDocuments})
	}

	return diffs
}

func sameSet(a, b []string) bool {
	x := slices.Compact(slices.Sorted(slices.Values(a)))
	y := slices.Compact(slices.Sorted(slices.Values(b)))
	return slices.Equal(x, y)
}
