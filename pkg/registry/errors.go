package registry

import (
	"fmt"

	"mercator-hq/arbiter/pkg/model"
)

// TransitionError reports a lifecycle transition that is not allowed, such as
// publishing an archived version or editing a published one.
type TransitionError struct {
	ID      string
	Version int
	From    model.Status
	To      model.Status
	Reason  string
	Err     error
}

// Error returns the error message.
func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("workflow %s v%d: cannot move from %s to %s", e.ID, e.Version, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *TransitionError) Unwrap() error {
	return e.Err
}
