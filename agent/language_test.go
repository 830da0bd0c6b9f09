package agent

import (
	"errors"
	"testing"
)

func TestConstructPrompt(t *testing.T) {
	goals := []Goal{
		{Priority: 2, Name: "Write README", Description: "write it"},
		{Priority: 1, Name: "Gather Information", Description: "read files"},
		{Priority: 2, Name: "Terminate", Description: "call terminate"},
	}
	mem := NewMemory()
	mem.Append(MemoryEntry{Type: EntryUser, Content: "Write a README."})
	mem.Append(MemoryEntry{Type: EntryAssistant, Content: `{"tool":"list_project_files","args":{}}`})
	mem.Append(MemoryEntry{Type: EntryActionResult, Content: `{"tool_executed":true,"result":["a.py"]}`})
	mem.Append(MemoryEntry{Type: EntrySystem, Content: "Loop detected"})
	schemas := []ActionSchema{{Name: "list_project_files", Parameters: emptyObjectSchema()}}

	lang := FunctionCallingLanguage{MaxTokens: 512}
	prompt := lang.ConstructPrompt(goals, mem, schemas)

	wantSystem := "Gather Information:\nread files\n\nWrite README:\nwrite it\n\nTerminate:\ncall terminate"
	if prompt.Messages[0].Role != RoleSystem || prompt.Messages[0].Content != wantSystem {
		t.Errorf("unexpected goals message:\n%q", prompt.Messages[0].Content)
	}

	wantRoles := []string{RoleSystem, RoleUser, RoleAssistant, RoleUser, RoleSystem}
	if len(prompt.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(prompt.Messages))
	}
	for i, role := range wantRoles {
		if prompt.Messages[i].Role != role {
			t.Errorf("message %d: expected role %s, got %s", i, role, prompt.Messages[i].Role)
		}
	}
	if len(prompt.Tools) != 1 || prompt.Tools[0].Name != "list_project_files" {
		t.Errorf("unexpected tools: %+v", prompt.Tools)
	}
	if prompt.MaxTokens == nil || *prompt.MaxTokens != 512 {
		t.Errorf("unexpected max tokens: %v", prompt.MaxTokens)
	}

	again := lang.ConstructPrompt(goals, mem, schemas)
	for i := range prompt.Messages {
		if prompt.Messages[i] != again.Messages[i] {
			t.Error("prompt construction must be deterministic")
		}
	}
}

func TestConstructPromptNoGoals(t *testing.T) {
	mem := NewMemory()
	mem.Append(MemoryEntry{Type: EntryUser, Content: "hi"})
	prompt := FunctionCallingLanguage{}.ConstructPrompt(nil, mem, nil)
	if len(prompt.Messages) != 1 || prompt.Messages[0].Role != RoleUser {
		t.Errorf("unexpected messages: %+v", prompt.Messages)
	}
	if prompt.Tools != nil || prompt.MaxTokens != nil {
		t.Error("expected no tools and no token limit")
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawOutput
		kind    DecisionKind
		action  string
		args    Args
		text    string
		dropped int
	}{
		{
			name:   "tool call",
			raw:    RawOutput{ToolCalls: []RawToolCall{{Name: "read_project_file", Arguments: `{"name":"a.py"}`}}},
			kind:   DecisionToolCall,
			action: "read_project_file",
			args:   Args{"name": "a.py"},
		},
		{
			name:   "empty arguments",
			raw:    RawOutput{ToolCalls: []RawToolCall{{Name: "list_project_files"}}},
			kind:   DecisionToolCall,
			action: "list_project_files",
			args:   Args{},
		},
		{
			name:   "null arguments",
			raw:    RawOutput{ToolCalls: []RawToolCall{{Name: "list_project_files", Arguments: "null"}}},
			kind:   DecisionToolCall,
			action: "list_project_files",
			args:   Args{},
		},
		{
			name: "multiple calls keep the first",
			raw: RawOutput{Text: "doing both", ToolCalls: []RawToolCall{
				{Name: "list_project_files", Arguments: "{}"},
				{Name: "terminate", Arguments: `{"message":"x"}`},
				{Name: "terminate", Arguments: `{"message":"y"}`},
			}},
			kind:    DecisionToolCall,
			action:  "list_project_files",
			args:    Args{},
			text:    "doing both",
			dropped: 2,
		},
		{
			name:   "tool envelope in text",
			raw:    RawOutput{Text: ` {"tool": "terminate", "args": {"message": "Summary: done"}} `},
			kind:   DecisionToolCall,
			action: "terminate",
			args:   Args{"message": "Summary: done"},
		},
		{
			name:   "tool envelope without args",
			raw:    RawOutput{Text: `{"tool": "list_project_files"}`},
			kind:   DecisionToolCall,
			action: "list_project_files",
			args:   Args{},
		},
		{
			name: "free text",
			raw:  RawOutput{Text: "I need to read the files first."},
			kind: DecisionFreeText,
			text: "I need to read the files first.",
		},
		{
			name: "json without tool key",
			raw:  RawOutput{Text: `{"answer": 42}`},
			kind: DecisionFreeText,
			text: `{"answer": 42}`,
		},
		{
			name: "broken json is text",
			raw:  RawOutput{Text: `{"tool": "terminate"`},
			kind: DecisionFreeText,
			text: `{"tool": "terminate"`,
		},
	}

	lang := FunctionCallingLanguage{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := lang.ParseResponse(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Kind != tt.kind || d.Action != tt.action || d.Text != tt.text || d.Dropped != tt.dropped {
				t.Errorf("unexpected decision: %+v", d)
			}
			if tt.kind == DecisionToolCall {
				if len(d.Args) != len(tt.args) {
					t.Fatalf("expected args %v, got %v", tt.args, d.Args)
				}
				for k, v := range tt.args {
					if d.Args[k] != v {
						t.Errorf("arg %s: expected %v, got %v", k, v, d.Args[k])
					}
				}
			}
		})
	}
}

func TestParseResponseMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  RawOutput
	}{
		{"invalid json", RawOutput{ToolCalls: []RawToolCall{{Name: "read_project_file", Arguments: `{"name":`}}}},
		{"array arguments", RawOutput{ToolCalls: []RawToolCall{{Name: "read_project_file", Arguments: `["a.py"]`}}}},
		{"string arguments", RawOutput{ToolCalls: []RawToolCall{{Name: "read_project_file", Arguments: `"a.py"`}}}},
		{"missing name", RawOutput{ToolCalls: []RawToolCall{{Arguments: `{}`}}}},
		{"envelope with bad args", RawOutput{Text: `{"tool": "terminate", "args": "done"}`}},
		{"envelope with bad tool", RawOutput{Text: `{"tool": 7, "args": {}}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FunctionCallingLanguage{}.ParseResponse(tt.raw)
			var malformed *MalformedDecisionError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedDecisionError, got %v", err)
			}
			if malformed.Raw == "" {
				t.Error("expected raw output to be kept")
			}
		})
	}
}

func TestDecisionString(t *testing.T) {
	d := Decision{Kind: DecisionToolCall, Action: "read_project_file", Args: Args{"name": "a.py"}}
	if got := d.String(); got != `{"tool":"read_project_file","args":{"name":"a.py"}}` {
		t.Errorf("unexpected rendering: %s", got)
	}
	d = Decision{Kind: DecisionToolCall, Action: "list_project_files"}
	if got := d.String(); got != `{"tool":"list_project_files","args":{}}` {
		t.Errorf("unexpected rendering: %s", got)
	}
	if got := (Decision{Kind: DecisionFreeText, Text: "hi"}).String(); got != "hi" {
		t.Errorf("unexpected rendering: %s", got)
	}
}

func TestRawOutputString(t *testing.T) {
	raw := RawOutput{Text: "note", ToolCalls: []RawToolCall{{Name: "x", Arguments: "{bad"}, {Name: "y"}}}
	want := "note\n{\"tool\": \"x\", \"args\": {bad}\n{\"tool\": \"y\", \"args\": {}}"
	if got := raw.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSortGoalsStable(t *testing.T) {
	goals := []Goal{
		{Priority: 3, Name: "c"},
		{Priority: 1, Name: "a1"},
		{Priority: 1, Name: "a2"},
		{Priority: 2, Name: "b"},
	}
	sorted := SortGoals(goals)
	want := []string{"a1", "a2", "b", "c"}
	for i, g := range sorted {
		if g.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], g.Name)
		}
	}
	if goals[0].Name != "c" {
		t.Error("SortGoals must not reorder its input")
	}
}
