package llm

import "testing"

func TestCountTokens(t *testing.T) {
	if got := CountTokens("gpt-4o-mini", ""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
	if got := CountTokens("gpt-4o-mini", "hi"); got < 1 {
		t.Errorf("expected at least 1 token, got %d", got)
	}
	short := CountTokens("claude-sonnet-4-5", "read the file")
	long := CountTokens("claude-sonnet-4-5", "read the file and then write a longer summary of every function in it")
	if long <= short {
		t.Errorf("expected longer text to count more tokens: %d <= %d", long, short)
	}
}

func TestEstimateRequestTokens(t *testing.T) {
	base := Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{UserMessage("list the project files")},
	}
	withTools := base
	withTools.Tools = []ToolDefinition{{
		Name:        "list_project_files",
		Description: "Lists all Python files in the project directory.",
	}}

	if EstimateRequestTokens(base) == 0 {
		t.Error("expected a non-zero estimate")
	}
	if EstimateRequestTokens(withTools) <= EstimateRequestTokens(base) {
		t.Error("expected tool definitions to add to the estimate")
	}
	if EstimateRequestTokens(Request{}) != 0 {
		t.Error("expected an empty request to estimate to zero")
	}
}
