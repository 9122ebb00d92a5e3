package tools

import "fmt"

// ErrToolNotFound is returned when a tool call targets a name with no
// registered descriptor.
type ErrToolNotFound struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolNotFound) Error() string {
	return fmt.Sprintf("tool not found: %s", e.ToolName)
}

// ErrMissingParam is returned when a required parameter is absent from
// the model-supplied arguments. Param names the first missing required
// parameter in descriptor order. Validation happens before the executor
// runs, so a tool never sees an incomplete argument set.
type ErrMissingParam struct {
	ToolName string
	Param    string
}

// Error implements the error interface.
func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Param)
}
