package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Prompt roles understood by oracles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// PromptMessage is one message of a prompt.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is the input to a single oracle call. It is rebuilt every iteration.
type Prompt struct {
	Messages  []PromptMessage `json:"messages"`
	Tools     []ActionSchema  `json:"tools,omitempty"`
	MaxTokens *int            `json:"max_tokens,omitempty"`
}

// RawToolCall is a tool invocation as emitted by the oracle. Arguments is the
// undecoded JSON text.
type RawToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// RawOutput is the unparsed result of an oracle call.
type RawOutput struct {
	Text      string        `json:"text,omitempty"`
	ToolCalls []RawToolCall `json:"tool_calls,omitempty"`
}

// String renders the output the way it is recorded in memory.
func (o RawOutput) String() string {
	parts := make([]string, 0, 1+len(o.ToolCalls))
	if o.Text != "" {
		parts = append(parts, o.Text)
	}
	for _, tc := range o.ToolCalls {
		args := tc.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		parts = append(parts, fmt.Sprintf(`{"tool": %q, "args": %s}`, tc.Name, args))
	}
	return strings.Join(parts, "\n")
}

// DecisionKind discriminates Decision.
type DecisionKind string

const (
	DecisionToolCall DecisionKind = "tool_call"
	DecisionFreeText DecisionKind = "free_text"
)

// Decision is the parsed oracle output: either a request to run an action or
// plain text.
type Decision struct {
	Kind    DecisionKind `json:"kind" yaml:"kind"`
	Action  string       `json:"action,omitempty" yaml:"action,omitempty"`
	Args    Args         `json:"args,omitempty" yaml:"args,omitempty"`
	Text    string       `json:"text,omitempty" yaml:"text,omitempty"`
	Dropped int          `json:"dropped,omitempty" yaml:"dropped,omitempty"` // extra tool calls ignored this turn
}

// String renders a tool call decision as {"tool": name, "args": {...}} and a
// free text decision as its text.
func (d Decision) String() string {
	if d.Kind != DecisionToolCall {
		return d.Text
	}
	args := d.Args
	if args == nil {
		args = Args{}
	}
	data, err := json.Marshal(struct {
		Tool string `json:"tool"`
		Args Args   `json:"args"`
	}{d.Action, args})
	if err != nil {
		return fmt.Sprintf("%s(%v)", d.Action, d.Args)
	}
	return string(data)
}

// Language translates agent state into prompts and oracle output into
// decisions. Implementations must be deterministic.
type Language interface {
	ConstructPrompt(goals []Goal, memory *Memory, schemas []ActionSchema) Prompt
	ParseResponse(raw RawOutput) (Decision, error)
}

// FunctionCallingLanguage exposes actions as native tools and reads the
// oracle's tool calls back.
type FunctionCallingLanguage struct {
	MaxTokens int // 0 leaves the limit to the oracle
}

// ConstructPrompt renders goals as a system message, followed by the full
// memory mapped onto prompt roles.
func (l FunctionCallingLanguage) ConstructPrompt(goals []Goal, memory *Memory, schemas []ActionSchema) Prompt {
	var prompt Prompt
	if len(goals) > 0 {
		prompt.Messages = append(prompt.Messages, PromptMessage{Role: RoleSystem, Content: renderGoals(goals)})
	}
	if memory != nil {
		for _, entry := range memory.Entries() {
			prompt.Messages = append(prompt.Messages, PromptMessage{
				Role:    roleFor(entry.Type),
				Content: entry.Content,
			})
		}
	}
	if len(schemas) > 0 {
		prompt.Tools = make([]ActionSchema, len(schemas))
		copy(prompt.Tools, schemas)
	}
	if l.MaxTokens > 0 {
		n := l.MaxTokens
		prompt.MaxTokens = &n
	}
	return prompt
}

func roleFor(t EntryType) string {
	switch t {
	case EntryAssistant:
		return RoleAssistant
	case EntrySystem:
		return RoleSystem
	default:
		// user input and action results are both fed back as user messages.
		return RoleUser
	}
}

// ParseResponse turns raw oracle output into a Decision. Only the first tool
// call is honored; the rest are counted in Decision.Dropped.
func (l FunctionCallingLanguage) ParseResponse(raw RawOutput) (Decision, error) {
	if len(raw.ToolCalls) > 0 {
		call := raw.ToolCalls[0]
		if call.Name == "" {
			return Decision{}, &MalformedDecisionError{Raw: raw.String(), Cause: errors.New("tool call has no name")}
		}
		args, err := decodeArguments(call.Arguments)
		if err != nil {
			return Decision{}, &MalformedDecisionError{Raw: raw.String(), Cause: err}
		}
		return Decision{
			Kind:    DecisionToolCall,
			Action:  call.Name,
			Args:    args,
			Text:    raw.Text,
			Dropped: len(raw.ToolCalls) - 1,
		}, nil
	}

	if d, ok, err := parseToolEnvelope(raw.Text); ok {
		if err != nil {
			return Decision{}, &MalformedDecisionError{Raw: raw.Text, Cause: err}
		}
		return d, nil
	}

	return Decision{Kind: DecisionFreeText, Text: raw.Text}, nil
}

// parseToolEnvelope recognizes a text body that is exactly a JSON object with
// a "tool" key. ok is false when the text is not such an object.
func parseToolEnvelope(text string) (d Decision, ok bool, err error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return Decision{}, false, nil
	}
	var envelope map[string]json.RawMessage
	if json.Unmarshal([]byte(trimmed), &envelope) != nil {
		return Decision{}, false, nil
	}
	rawTool, found := envelope["tool"]
	if !found {
		return Decision{}, false, nil
	}

	var name string
	if err := json.Unmarshal(rawTool, &name); err != nil || name == "" {
		return Decision{}, true, errors.New(`"tool" must be a non-empty string`)
	}
	args, err := decodeArguments(string(envelope["args"]))
	if err != nil {
		return Decision{}, true, err
	}
	return Decision{Kind: DecisionToolCall, Action: name, Args: args}, true, nil
}

// decodeArguments decodes a JSON object. Empty input and null decode to an
// empty map.
func decodeArguments(raw string) (Args, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return Args{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object, got %T", v)
	}
	return Args(obj), nil
}
