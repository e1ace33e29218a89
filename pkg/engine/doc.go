// Package engine evaluates applicant records against rule sets and workflow
// graphs and produces credit decisions (approve, decline or review).
//
// # Architecture
//
// The engine is layered leaf-first:
//
//  1. Value & operator layer - typed coercion (number, string, boolean, date,
//     array) and comparison semantics
//  2. Condition matcher - resolves a dotted field path and applies one operator
//  3. Rule evaluator - combines conditions with AND/OR, orders rules by
//     priority and applies the actions of matching rules
//  4. Workflow executor - walks the graph from its start node, branching on
//     labeled connections, until an end node is reached
//
// # Evaluation Flow
//
//	ApplicantData
//	       ↓
//	Execute(workflow) → validate (cached by content hash)
//	       ↓
//	start → data_source → condition ─true→ rule_set → action → end
//	                          └─false→ ...
//	       ↓
//	DecisionResult (decision, score, flags, executed rules, errors, warnings)
//
// # Decisions
//
// Within one evaluation the first approve, decline or review wins. Later rules still
// add flags, adjust the score and record documents, but cannot overwrite the
// decision. Without a terminal action the decision is review.
//
// Conditions are total: a missing field, an unparsable value or an
// incompatible comparison makes the condition false and adds a warning.
// Runtime failures during a traversal (missing branch edge, exhausted step
// budget, cancellation) are recorded in Errors and force review.
//
// # Basic Usage
//
//	eng, err := engine.NewDecisionEngine(engine.DefaultConfig(), logger)
//	if err != nil {
//	    return err
//	}
//
//	result, err := eng.Execute(ctx, workflow, model.ApplicantData{
//	    "creditScore":       780,
//	    "debtToIncomeRatio": 0.25,
//	})
//	if err != nil {
//	    // workflow failed validation
//	}
//	fmt.Println(result.Decision)
//
// # Concurrency
//
// Evaluation is pure: inputs are never mutated and no state is shared between
// evaluations. A DecisionEngine may be used from many goroutines at once.
package engine
