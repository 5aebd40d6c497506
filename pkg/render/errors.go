package render

import "fmt"

// AggregateRenderError is returned when one child failure fails the whole hierarchy
type AggregateRenderError struct {
	Intent string
	// FailedChild is empty when the parent document itself failed
	FailedChild string
	Cause       error
}

func (e *AggregateRenderError) Error() string {
	if e.FailedChild == "" {
		return fmt.Sprintf("failed to render %s: %v", e.Intent, e.Cause)
	}
	return fmt.Sprintf("failed to render %s: child %s: %v", e.Intent, e.FailedChild, e.Cause)
}

func (e *AggregateRenderError) Unwrap() error {
	return e.Cause
}

// RenderError is the failure of a single independently rendered child
type RenderError struct {
	Child string
	Index int
	Cause error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render child %s (index %d): %v", e.Child, e.Index, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
