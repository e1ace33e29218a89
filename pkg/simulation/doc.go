// Package simulation runs applicant fixtures through a workflow or a rule set
// and compares the outcome with what each fixture expects.
//
// A Harness evaluates one case with RunTestCase or a batch with RunAll. RunAll
// fans cases out over a worker pool; each case is independent, so workers
// share nothing but the read-only target, and results are gathered in input
// order before statistics are computed in a single pass.
//
// Suites can be kept on disk as YAML:
//
//	name: personal loan regression
//	workflow: personal-loan.yaml
//	cases:
//	  - id: strong-applicant
//	    inputData: {creditScore: 780, debtToIncomeRatio: 0.25}
//	    expectedOutput:
//	      decision: approve
//	      flags: []
//
// The workflow (or rules) path is resolved relative to the suite file.
package simulation
