package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// ExecutionResult is the normalized outcome of running an action.
type ExecutionResult struct {
	Action    string    `json:"action" yaml:"action"`
	Success   bool      `json:"success" yaml:"success"`
	Value     any       `json:"value,omitempty" yaml:"value,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Err is the typed failure behind Error. It is not persisted.
	Err error `json:"-" yaml:"-"`
}

func failedResult(action string, err error) ExecutionResult {
	return ExecutionResult{
		Action:    action,
		Error:     err.Error(),
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Render formats the result as the JSON document recorded in memory.
func (r ExecutionResult) Render() string {
	var doc any
	if r.Success {
		doc = struct {
			ToolExecuted bool `json:"tool_executed"`
			Result       any  `json:"result"`
		}{true, r.Value}
	} else {
		doc = struct {
			ToolExecuted bool   `json:"tool_executed"`
			Error        string `json:"error"`
		}{false, r.Error}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		// Values that cannot be encoded are reported by their string form.
		data, _ = json.Marshal(struct {
			ToolExecuted bool   `json:"tool_executed"`
			Result       string `json:"result"`
		}{true, fmt.Sprint(r.Value)})
	}
	return string(data)
}

// Environment executes actions and normalizes their outcomes. It holds no
// per-call state.
type Environment struct {
	log logr.Logger
}

// NewEnvironment creates an Environment that logs through log.
func NewEnvironment(log logr.Logger) *Environment {
	return &Environment{log: log}
}

// Execute validates args against the action's required parameters and runs
// it. Failures, including panics, are returned as unsuccessful results.
func (e *Environment) Execute(ctx context.Context, action *Action, args Args) ExecutionResult {
	if args == nil {
		args = Args{}
	}
	start := time.Now()

	if missing := missingRequired(action, args); len(missing) > 0 {
		err := &InvalidArgumentsError{Action: action.Name, Missing: missing}
		e.log.V(1).Info("action rejected", "action", action.Name, "missing", missing)
		return failedResult(action.Name, err)
	}

	value, err := invoke(ctx, action, args)
	duration := time.Since(start)
	if err != nil {
		e.log.V(1).Info("action failed", "action", action.Name, "error", err.Error(), "duration_ms", duration.Milliseconds())
		return failedResult(action.Name, err)
	}

	e.log.V(1).Info("action executed", "action", action.Name, "duration_ms", duration.Milliseconds())
	return ExecutionResult{
		Action:    action.Name,
		Success:   true,
		Value:     value,
		Timestamp: time.Now(),
	}
}

func invoke(ctx context.Context, action *Action, args Args) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &ExecutionError{Action: action.Name, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	value, err = action.Func(ctx, args)
	if err != nil {
		var invalid *InvalidArgumentsError
		if !errors.As(err, &invalid) {
			err = &ExecutionError{Action: action.Name, Cause: err}
		}
		return nil, err
	}
	return value, nil
}

func missingRequired(action *Action, args Args) []string {
	var missing []string
	for _, name := range action.RequiredParameters() {
		if _, ok := args[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
