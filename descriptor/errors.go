package descriptor

import (
	"fmt"

	"github.com/next-trace/scg-event-service/contract/event"
)

// DeclarationError ties a resolution failure to the declaration that caused it.
type DeclarationError struct {
	// Index is the declaration's position in the candidate's Subscriptions.
	Index int

	Kind event.Kind

	// Candidate is the resolved object's dynamic type.
	Candidate string

	Err error
}

// Error implements the error interface.
func (e *DeclarationError) Error() string {
	return fmt.Sprintf("resolve %s subscription #%d on %s: %v", e.Kind, e.Index, e.Candidate, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeclarationError) Unwrap() error {
	return e.Err
}
