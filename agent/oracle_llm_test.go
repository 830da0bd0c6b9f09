package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/martinemde/goalagent/llm"
)

// stubAdapter replays responses or errors and records requests.
type stubAdapter struct {
	responses []*llm.Response
	errs      []error
	requests  []llm.Request
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.requests = append(s.requests, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2}
}

func TestLLMOracleGenerate(t *testing.T) {
	stub := &stubAdapter{responses: []*llm.Response{{
		Message: llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentPart{
			llm.TextPart("reading"),
			llm.ToolCallPart("call_1", "read_project_file", json.RawMessage(`{"name":"a.py"}`)),
		}},
	}}}
	client := llm.NewClient(llm.WithProvider("stub", stub))
	oracle := NewLLMOracle(client, WithModel("gpt-4o-mini"), WithTemperature(0.2), WithRetryPolicy(fastRetry()))

	maxTokens := 256
	prompt := Prompt{
		Messages: []PromptMessage{
			{Role: RoleSystem, Content: "Gather:\nread files"},
			{Role: RoleUser, Content: "go"},
			{Role: RoleAssistant, Content: `{"tool":"list_project_files","args":{}}`},
			{Role: RoleUser, Content: `{"tool_executed":true,"result":["a.py"]}`},
		},
		Tools:     []ActionSchema{{Name: "read_project_file", Description: "Reads.", Parameters: emptyObjectSchema()}},
		MaxTokens: &maxTokens,
	}

	out, err := oracle.Generate(context.Background(), prompt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "reading" || len(out.ToolCalls) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if out.ToolCalls[0].Name != "read_project_file" || out.ToolCalls[0].Arguments != `{"name":"a.py"}` {
		t.Errorf("unexpected tool call: %+v", out.ToolCalls[0])
	}

	req := stub.requests[0]
	if req.Model != "gpt-4o-mini" || req.Temperature == nil || *req.Temperature != 0.2 {
		t.Errorf("unexpected request options: model=%q temp=%v", req.Model, req.Temperature)
	}
	if req.MaxTokens == nil || *req.MaxTokens != 256 {
		t.Errorf("expected max tokens to pass through, got %v", req.MaxTokens)
	}
	wantRoles := []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleUser}
	for i, role := range wantRoles {
		if req.Messages[i].Role != role {
			t.Errorf("message %d: expected %s, got %s", i, role, req.Messages[i].Role)
		}
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != "read_project_file" || req.ToolChoice == nil || req.ToolChoice.Mode != "auto" {
		t.Errorf("unexpected tools: %+v %+v", req.Tools, req.ToolChoice)
	}
}

func TestLLMOracleRetriesTransientErrors(t *testing.T) {
	stub := &stubAdapter{
		errs: []error{&llm.ServerError{ProviderError: llm.ProviderError{Retryable: true}}, nil},
		responses: []*llm.Response{{
			Message: llm.AssistantMessage("ok"),
		}},
	}
	client := llm.NewClient(llm.WithProvider("stub", stub))
	oracle := NewLLMOracle(client, WithRetryPolicy(fastRetry()))

	out, err := oracle.Generate(context.Background(), Prompt{Messages: []PromptMessage{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "ok" || len(stub.requests) != 2 {
		t.Errorf("expected one retry, got %d requests and %+v", len(stub.requests), out)
	}
	if stub.requests[0].Tools != nil || stub.requests[0].ToolChoice != nil {
		t.Error("expected no tools when the prompt has none")
	}
}

func TestLLMOracleFailureEndsRun(t *testing.T) {
	authErr := &llm.AuthenticationError{ProviderError: llm.ProviderError{
		SDKError: llm.SDKError{Message: "bad key"},
	}}
	stub := &stubAdapter{errs: []error{authErr}}
	client := llm.NewClient(llm.WithProvider("stub", stub))
	oracle := NewLLMOracle(client, WithRetryPolicy(fastRetry()))
	a := newTestAgent(t, oracle)

	result, err := a.Run(context.Background(), "go")
	var unavailable *OracleUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected OracleUnavailableError, got %v", err)
	}
	var auth *llm.AuthenticationError
	if !errors.As(err, &auth) {
		t.Errorf("expected the transport error to be reachable, got %v", err)
	}
	if len(stub.requests) != 1 {
		t.Errorf("authentication errors must not be retried, got %d requests", len(stub.requests))
	}
	if result.State != StateFailed {
		t.Errorf("expected failed state, got %q", result.State)
	}
}

func TestLLMOracleDrivesScenario(t *testing.T) {
	toolResponse := func(name, args string) *llm.Response {
		return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentPart{
			llm.ToolCallPart("call", name, json.RawMessage(args)),
		}}}
	}
	stub := &stubAdapter{responses: []*llm.Response{
		toolResponse("list_project_files", `{}`),
		toolResponse("read_project_file", `{"name":"a.py"}`),
		// Some providers return the call as a JSON text body.
		{Message: llm.AssistantMessage(`{"tool": "terminate", "args": {"message": "Summary: one file"}}`)},
	}}
	client := llm.NewClient(llm.WithProvider("stub", stub))
	a := newTestAgent(t, NewLLMOracle(client, WithProvider("stub")))

	result, err := a.Run(context.Background(), "Write a README for this project.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != StateTerminated || result.Iterations != 3 {
		t.Errorf("unexpected outcome: state=%q iterations=%d", result.State, result.Iterations)
	}
	if stub.requests[2].Provider != "stub" {
		t.Errorf("expected provider to be pinned, got %q", stub.requests[2].Provider)
	}
}
