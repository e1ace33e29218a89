package validator

import (
	"fmt"
	"strings"
)

// Category classifies a validation issue.
type Category string

const (
	CategoryStructural Category = "structural" // graph shape: start/end, reachability, branches
	CategoryReference  Category = "reference"  // dangling node or connection references
	CategoryRule       Category = "rule"       // malformed rule, condition or action
)

// Issue is a single validation problem.
type Issue struct {
	Category   Category
	Message    string
	NodeID     string
	RuleID     string
	Suggestion string
}

// Error implements the error interface.
func (i *Issue) Error() string {
	var sb strings.Builder
	switch {
	case i.NodeID != "" && i.RuleID != "":
		fmt.Fprintf(&sb, "node %s rule %s: ", i.NodeID, i.RuleID)
	case i.NodeID != "":
		fmt.Fprintf(&sb, "node %s: ", i.NodeID)
	case i.RuleID != "":
		fmt.Fprintf(&sb, "rule %s: ", i.RuleID)
	}
	sb.WriteString(i.Message)
	if i.Suggestion != "" {
		fmt.Fprintf(&sb, " (%s)", i.Suggestion)
	}
	return sb.String()
}

// IssueList accumulates issues instead of failing on the first one.
type IssueList struct {
	Issues []*Issue
}

// NewIssueList creates a new empty issue list.
func NewIssueList() *IssueList {
	return &IssueList{Issues: make([]*Issue, 0)}
}

// Add appends an issue to the list.
func (l *IssueList) Add(issue *Issue) {
	l.Issues = append(l.Issues, issue)
}

// Addf creates and adds an issue with a formatted message.
func (l *IssueList) Addf(category Category, nodeID, ruleID, format string, args ...any) *Issue {
	issue := &Issue{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		NodeID:   nodeID,
		RuleID:   ruleID,
	}
	l.Add(issue)
	return issue
}

// Merge appends every issue of other.
func (l *IssueList) Merge(other *IssueList) {
	if other == nil {
		return
	}
	l.Issues = append(l.Issues, other.Issues...)
}

// HasErrors returns true if the list contains any issues.
func (l *IssueList) HasErrors() bool {
	return len(l.Issues) > 0
}

// Count returns the number of issues in the list.
func (l *IssueList) Count() int {
	return len(l.Issues)
}

// HasCategory returns true if at least one issue has the given category.
func (l *IssueList) HasCategory(category Category) bool {
	for _, issue := range l.Issues {
		if issue.Category == category {
			return true
		}
	}
	return false
}

// ByCategory returns all issues of the given category.
func (l *IssueList) ByCategory(category Category) []*Issue {
	var out []*Issue
	for _, issue := range l.Issues {
		if issue.Category == category {
			out = append(out, issue)
		}
	}
	return out
}

// Strings renders every issue as a human-readable message.
func (l *IssueList) Strings() []string {
	out := make([]string, 0, len(l.Issues))
	for _, issue := range l.Issues {
		out = append(out, issue.Error())
	}
	return out
}

// Error implements the error interface.
func (l *IssueList) Error() string {
	if !l.HasErrors() {
		return ""
	}
	if len(l.Issues) == 1 {
		return l.Issues[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(l.Issues), strings.Join(l.Strings(), "; "))
}

// ToError returns nil if the list is empty, otherwise the list itself.
func (l *IssueList) ToError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}
