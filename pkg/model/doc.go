// Package model defines the data model of the decision engine: applicant
// records, typed conditions, prioritized rules, actions, and the workflow
// graph that strings decision points together.
//
// The model is plain data. It carries no evaluation logic beyond small helpers
// (lookups, cloning, enum checks); evaluation lives in package engine and
// structural checks in package validator.
//
// # Rules
//
// A Rule combines Conditions with a LogicalOperator and yields its Actions when
// it matches:
//
//	rule := &model.Rule{
//	    ID:              "high-score",
//	    Priority:        90,
//	    Enabled:         true,
//	    LogicalOperator: model.LogicalAnd,
//	    Conditions: []model.Condition{{
//	        ID:       "c1",
//	        Field:    "applicationData.creditScore",
//	        Operator: model.OperatorGreaterThanOrEqual,
//	        Value:    700.0,
//	        DataType: model.DataTypeNumber,
//	    }},
//	    Actions: []model.Action{{Type: model.ActionApprove}},
//	}
//
// # Workflows
//
// A WorkflowDefinition is a directed graph of typed nodes (NodeKind) joined by
// labeled connections. Node kinds form a closed set; code that dispatches on
// the kind should switch over every constant so that new kinds surface as
// compile-time review points.
//
// Definitions are versioned. A published definition is never edited in place;
// NewVersion returns a draft copy with the next version number.
package model
