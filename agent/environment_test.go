package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-logr/logr"
)

func TestEnvironmentExecute(t *testing.T) {
	env := NewEnvironment(logr.Discard())
	boom := errors.New("disk full")

	readFile := NewAction("read_project_file", "", func(ctx context.Context, args Args) (any, error) {
		name, _ := args.String("name")
		return "contents of " + name, nil
	}, WithParameters(map[string]any{
		"type":     "object",
		"required": []any{"name"},
	}))
	failing := NewAction("write_project_file", "", func(ctx context.Context, args Args) (any, error) {
		return nil, boom
	})
	panicking := NewAction("explode", "", func(ctx context.Context, args Args) (any, error) {
		panic("kaboom")
	})
	listing := NewAction("list_project_files", "", func(ctx context.Context, args Args) (any, error) {
		return []string{"a.py", "b.py"}, nil
	})

	t.Run("success", func(t *testing.T) {
		r := env.Execute(context.Background(), readFile, Args{"name": "a.py"})
		if !r.Success || r.Value != "contents of a.py" || r.Action != "read_project_file" {
			t.Fatalf("unexpected result: %+v", r)
		}
		if r.Render() != `{"tool_executed":true,"result":"contents of a.py"}` {
			t.Errorf("unexpected rendering: %s", r.Render())
		}
		if r.Timestamp.IsZero() {
			t.Error("expected a timestamp")
		}
	})

	t.Run("list value", func(t *testing.T) {
		r := env.Execute(context.Background(), listing, nil)
		if r.Render() != `{"tool_executed":true,"result":["a.py","b.py"]}` {
			t.Errorf("unexpected rendering: %s", r.Render())
		}
	})

	t.Run("missing required", func(t *testing.T) {
		r := env.Execute(context.Background(), readFile, Args{})
		var invalid *InvalidArgumentsError
		if r.Success || !errors.As(r.Err, &invalid) {
			t.Fatalf("expected InvalidArgumentsError, got %+v", r)
		}
		if !strings.HasPrefix(r.Render(), `{"tool_executed":false,"error":"invalid arguments for read_project_file`) {
			t.Errorf("unexpected rendering: %s", r.Render())
		}
	})

	t.Run("returned error", func(t *testing.T) {
		r := env.Execute(context.Background(), failing, nil)
		var execErr *ExecutionError
		if r.Success || !errors.As(r.Err, &execErr) || !errors.Is(r.Err, boom) {
			t.Fatalf("expected ExecutionError wrapping the cause, got %+v", r)
		}
		if !strings.Contains(r.Error, "disk full") {
			t.Errorf("expected cause in message, got %q", r.Error)
		}
	})

	t.Run("panic", func(t *testing.T) {
		r := env.Execute(context.Background(), panicking, nil)
		var execErr *ExecutionError
		if r.Success || !errors.As(r.Err, &execErr) || !strings.Contains(r.Error, "kaboom") {
			t.Fatalf("expected recovered panic, got %+v", r)
		}
	})
}

func TestExecutionResultRenderUnencodable(t *testing.T) {
	r := ExecutionResult{Success: true, Value: make(chan int)}
	if !strings.HasPrefix(r.Render(), `{"tool_executed":true,"result":"0x`) {
		t.Errorf("expected string fallback, got %s", r.Render())
	}
}

func TestDetectLoop(t *testing.T) {
	decision := func(name, arg string) MemoryEntry {
		return MemoryEntry{Type: EntryAssistant, Decision: &Decision{Kind: DecisionToolCall, Action: name, Args: Args{"name": arg}}}
	}
	result := MemoryEntry{Type: EntryActionResult}
	history := func(ds ...MemoryEntry) []MemoryEntry {
		var out []MemoryEntry
		for _, d := range ds {
			out = append(out, d, result)
		}
		return out
	}
	a, b, c, d := decision("read", "a"), decision("read", "b"), decision("read", "c"), decision("read", "d")

	tests := []struct {
		name    string
		entries []MemoryEntry
		window  int
		want    bool
	}{
		{"too few calls", history(a, a), 4, false},
		{"same call", history(a, a, a, a), 4, true},
		{"alternating", history(a, b, a, b, a, b), 6, true},
		{"triple", history(a, b, c, a, b, c), 6, true},
		{"no pattern", history(a, b, c, d, a, b), 6, false},
		{"different args", history(a, b, c, d), 4, false},
		{"disabled", history(a, a, a), 0, false},
		{"only recent window counts", history(b, c, a, a, a), 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLoop(tt.entries, tt.window); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	free := MemoryEntry{Type: EntryAssistant, Decision: &Decision{Kind: DecisionFreeText, Text: "x"}}
	if !DetectLoop([]MemoryEntry{a, free, a, free, a}, 3) {
		t.Error("free text decisions should not break a tool call loop")
	}
}

func TestTruncateOutput(t *testing.T) {
	short := "hello"
	if TruncateOutput(short, 10) != short {
		t.Error("short output should pass through")
	}
	if TruncateOutput(strings.Repeat("y", 50), 0) != strings.Repeat("y", 50) {
		t.Error("zero limit disables truncation")
	}

	long := strings.Repeat("a", 100) + strings.Repeat("b", 100)
	got := TruncateOutput(long, 40)
	if !strings.HasPrefix(got, strings.Repeat("a", 20)) || !strings.HasSuffix(got, strings.Repeat("b", 20)) {
		t.Errorf("expected head and tail kept, got %q", got)
	}
	if !strings.Contains(got, "160 characters were removed") {
		t.Errorf("expected removal count, got %q", got)
	}

	accented := strings.Repeat("é", 100)
	for _, limit := range []int{51, 52, 53} {
		got := TruncateOutput(accented, limit)
		if !utf8.ValidString(got) {
			t.Errorf("limit %d: truncation split a rune: %q", limit, got)
		}
		if !strings.HasPrefix(got, "é") || !strings.HasSuffix(got, "é") {
			t.Errorf("limit %d: expected head and tail kept, got %q", limit, got)
		}
	}
}

func TestEventEmitterDropsWhenFull(t *testing.T) {
	e := NewEventEmitter(2)
	for i := 0; i < 5; i++ {
		e.Emit(EventDecision, "run", nil)
	}
	e.Close()
	e.Close()
	e.Emit(EventRunEnd, "run", nil)

	count := 0
	for range e.Events() {
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 buffered events, got %d", count)
	}

	var nilEmitter *EventEmitter
	nilEmitter.Emit(EventRunStart, "run", nil)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Last(); ok {
		t.Error("expected empty memory")
	}
	m.Append(MemoryEntry{Type: EntryUser, Content: "one"})
	snapshot := m.Entries()
	snapshot[0].Content = "mutated"
	m.Append(MemoryEntry{Type: EntryAssistant, Content: "two"})

	entries := m.Entries()
	if entries[0].Content != "one" {
		t.Error("Entries must return a copy")
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("expected Append to stamp entries")
	}
	if last, _ := m.Last(); last.Content != "two" || m.Len() != 2 {
		t.Errorf("unexpected last entry %+v", last)
	}

	data, err := m.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	restored := NewMemory()
	if err := restored.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 2 {
		t.Errorf("expected 2 restored entries, got %d", restored.Len())
	}
	if err := restored.UnmarshalJSON(data); err == nil {
		t.Error("decoding into a non-empty memory must fail")
	}
	if restored.Len() != 2 {
		t.Errorf("failed decode must leave entries untouched, got %d", restored.Len())
	}
}

func TestMemoryEntriesDoNotShareDecisionsOrResults(t *testing.T) {
	m := NewMemory()
	decision := Decision{Kind: DecisionToolCall, Action: "read_project_file", Args: Args{
		"name":    "a.py",
		"options": map[string]any{"lines": []any{1, 2}},
	}}
	result := ExecutionResult{Action: "list_project_files", Success: true, Value: []string{"a.py", "b.py"}}
	m.Append(MemoryEntry{Type: EntryAssistant, Decision: &decision})
	m.Append(MemoryEntry{Type: EntryActionResult, Result: &result})

	// The caller's own values are not the stored ones.
	decision.Args["name"] = "changed.py"
	result.Value.([]string)[0] = "changed.py"

	snap := m.Entries()
	snap[0].Decision.Args["name"] = "MUTATED"
	snap[0].Decision.Args["options"].(map[string]any)["lines"].([]any)[0] = 99
	snap[0].Decision.Action = "terminate"
	snap[1].Result.Value.([]string)[0] = "MUTATED"
	snap[1].Result.Success = false
	last, _ := m.Last()
	last.Result.Value.([]string)[1] = "MUTATED"

	entries := m.Entries()
	d := entries[0].Decision
	if d.Action != "read_project_file" || d.Args["name"] != "a.py" {
		t.Errorf("stored decision changed: %+v", d)
	}
	if lines := d.Args["options"].(map[string]any)["lines"].([]any); lines[0] != 1 {
		t.Errorf("nested decision arguments changed: %v", lines)
	}
	r := entries[1].Result
	if !r.Success || r.Value.([]string)[0] != "a.py" || r.Value.([]string)[1] != "b.py" {
		t.Errorf("stored result changed: %+v", r)
	}
}
