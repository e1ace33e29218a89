// Package validator checks that workflow graphs and rule sets are well formed
// before the engine runs them.
//
// Graph checks:
//
//  1. exactly one start node and at least one end node
//  2. every connection endpoint resolves to an existing node
//  3. every non-end node is reachable from start
//  4. every non-start node has an incoming connection
//  5. branching nodes have both of their branch edges and at most one edge
//     per label; a condition or decision node without edges is a dead end
//  6. no duplicate (source, target) connections, no self loops
//
// Cycles are accepted. The executor bounds traversal with a step budget.
//
// Rule checks reject rules without conditions, empty fields, unknown
// operators, missing or mis-shaped comparison values, priorities outside
// [0, 100] and actions that lack a required value. Unknown names get a
// "did you mean" suggestion.
//
// Validation is pure. Cache memoises results by the SHA-256 of a
// definition's canonical encoding.
package validator
