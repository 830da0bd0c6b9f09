package agent

import "fmt"

// DuplicateActionError is returned when an action name is registered twice.
type DuplicateActionError struct {
	Name string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action %q is already registered", e.Name)
}

// UnknownActionError is returned when a decision names an action that is not
// visible to the agent.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Name)
}

// MalformedDecisionError is returned when oracle output signals a tool call
// whose arguments cannot be decoded.
type MalformedDecisionError struct {
	Raw   string
	Cause error
}

func (e *MalformedDecisionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed decision: %v", e.Cause)
	}
	return "malformed decision"
}

func (e *MalformedDecisionError) Unwrap() error { return e.Cause }

// InvalidArgumentsError reports arguments that do not satisfy an action's
// parameter schema.
type InvalidArgumentsError struct {
	Action  string
	Missing []string
	Cause   error
}

func (e *InvalidArgumentsError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("invalid arguments for %s: missing required %v", e.Action, e.Missing)
	case e.Cause != nil:
		return fmt.Sprintf("invalid arguments for %s: %v", e.Action, e.Cause)
	default:
		return fmt.Sprintf("invalid arguments for %s", e.Action)
	}
}

func (e *InvalidArgumentsError) Unwrap() error { return e.Cause }

// ExecutionError wraps a failure raised by an action's callable, including
// recovered panics.
type ExecutionError struct {
	Action string
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// OracleUnavailableError is returned by Run when the decision oracle fails.
// It is the only error that ends a run.
type OracleUnavailableError struct {
	Iteration int
	Cause     error
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("oracle unavailable at iteration %d: %v", e.Iteration, e.Cause)
}

func (e *OracleUnavailableError) Unwrap() error { return e.Cause }
