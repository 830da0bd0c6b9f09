package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// Args holds decoded decision arguments keyed by parameter name.
type Args map[string]any

// String returns the named argument as a string.
func (a Args) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ActionFunc is the callable behind an action. It returns a JSON-serializable
// value or an error.
type ActionFunc func(ctx context.Context, args Args) (any, error)

// Action is a named, described unit of work the oracle may choose.
type Action struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema of type object
	Terminal    bool
	Tags        []string
	Func        ActionFunc
}

// ActionOption configures an Action.
type ActionOption func(*Action)

// WithTags adds tags to the action.
func WithTags(tags ...string) ActionOption {
	return func(a *Action) {
		a.Tags = appendUnique(a.Tags, tags...)
	}
}

// WithParameters sets the parameter schema of an untyped action.
func WithParameters(schema map[string]any) ActionOption {
	return func(a *Action) {
		a.Parameters = schema
	}
}

// AsTerminal marks the action as ending the run once executed.
func AsTerminal() ActionOption {
	return func(a *Action) {
		a.Terminal = true
	}
}

// NewAction creates an untyped action. Without WithParameters the action
// takes no arguments.
func NewAction(name, description string, fn ActionFunc, opts ...ActionOption) *Action {
	a := &Action{
		Name:        name,
		Description: description,
		Func:        fn,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Parameters == nil {
		a.Parameters = emptyObjectSchema()
	}
	return a
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var schemaReflector = &jsonschema.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// NewTypedAction creates an action whose arguments decode into T. The
// parameter schema is reflected from T's json and jsonschema struct tags, and
// decoded values are checked against T's validate tags before fn runs.
func NewTypedAction[T any](name, description string, fn func(ctx context.Context, args T) (any, error), opts ...ActionOption) *Action {
	a := &Action{
		Name:        name,
		Description: description,
		Parameters:  reflectSchema[T](),
	}
	a.Func = func(ctx context.Context, args Args) (any, error) {
		v, err := decodeArgs[T](args)
		if err != nil {
			return nil, &InvalidArgumentsError{Action: name, Cause: err}
		}
		return fn(ctx, v)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func reflectSchema[T any]() map[string]any {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		return emptyObjectSchema()
	}

	data, err := json.Marshal(schemaReflector.ReflectFromType(t))
	if err != nil {
		return emptyObjectSchema()
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return emptyObjectSchema()
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema
}

func decodeArgs[T any](args Args) (T, error) {
	var v T
	data, err := json.Marshal(args)
	if err != nil {
		return v, fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode arguments: %w", err)
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Struct {
		if err := validate.Struct(v); err != nil {
			return v, err
		}
	}
	return v, nil
}

// RequiredParameters returns the names listed in the schema's "required"
// field.
func (a *Action) RequiredParameters() []string {
	switch req := a.Parameters["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// HasAnyTag reports whether the action carries at least one of tags.
func (a *Action) HasAnyTag(tags ...string) bool {
	for _, want := range tags {
		for _, have := range a.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Schema returns the model-facing description of the action.
func (a *Action) Schema() ActionSchema {
	return ActionSchema{
		Name:        a.Name,
		Description: a.Description,
		Parameters:  a.Parameters,
	}
}

// ActionSchema is what the oracle is told about a callable action.
type ActionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func emptyObjectSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
