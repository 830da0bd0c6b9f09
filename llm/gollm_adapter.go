package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string

	// gollm options are instance-wide, so per-request overrides and the
	// Generate call that observes them must not interleave. A one-slot
	// semaphore lets a waiting caller give up when its context ends.
	sem chan struct{}
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options (endpoints,
// ollama host, and so on).
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates a GollmAdapter for the given provider. An empty
// apiKey lets gollm read the provider's usual environment variable.
func NewGollmAdapter(provider, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		apiKey:      apiKey,
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		info := DefaultModel(provider)
		if info == nil {
			return nil, &ConfigurationError{SDKError: SDKError{
				Message: fmt.Sprintf("no model configured and no catalog default for provider %q", provider),
			}}
		}
		model = info.ID
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // Retries are handled by Retry.
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
		sem:      make(chan struct{}, 1),
	}, nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider, model string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
		sem:      make(chan struct{}, 1),
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Model returns the adapter's default model.
func (a *GollmAdapter) Model() string {
	return a.model
}

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)

	select {
	case a.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, &AbortError{SDKError: SDKError{Message: "waiting for " + a.provider + " adapter", Cause: ctx.Err()}}
	}
	a.applyRequestOptions(req)
	text, err := a.llm.Generate(ctx, prompt)
	<-a.sem
	if err != nil {
		return nil, a.translateError(err)
	}

	return a.buildResponse(req, text), nil
}

// translateRequest flattens a Request into a gollm Prompt. gollm takes one
// prompt string plus a system prompt, so the conversation is rendered as a
// labelled transcript.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	var system []string
	var transcript []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.TextContent())
		case RoleUser:
			transcript = append(transcript, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				transcript = append(transcript, "[Assistant]: "+text)
			}
			for _, part := range msg.Content {
				if part.Kind == ContentToolCall && part.ToolCall != nil {
					transcript = append(transcript,
						fmt.Sprintf("[Tool Call]: %s %s", part.ToolCall.Name, string(part.ToolCall.Arguments)))
				}
			}
		}
	}

	promptText := strings.Join(transcript, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if len(system) > 0 {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.Join(system, "\n"), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}
	if req.ToolChoice != nil {
		promptOpts = append(promptOpts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// applyRequestOptions applies request-level parameters to the gollm LLM.
func (a *GollmAdapter) applyRequestOptions(req Request) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	a.llm.SetOption("model", model)
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
}

// buildResponse constructs a Response from generated text, lifting any
// embedded tool calls into tool call parts.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	calls, rest := extractToolCalls(text)

	var parts []ContentPart
	if rest != "" {
		parts = append(parts, TextPart(rest))
	}
	for i := range calls {
		parts = append(parts, ContentPart{Kind: ContentToolCall, ToolCall: &calls[i]})
	}
	if len(parts) == 0 {
		parts = []ContentPart{TextPart(text)}
	}

	finish := FinishReason{Reason: "stop", Raw: "stop"}
	if len(calls) > 0 {
		finish = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	// gollm does not surface provider usage; estimate with the model's tokenizer.
	req.Model = model
	in := EstimateRequestTokens(req)
	out := CountTokens(model, text)
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      Message{Role: RoleAssistant, Content: parts},
		FinishReason: finish,
		Usage:        Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}
}

var functionCallBlock = regexp.MustCompile(`(?s)<function_call>\s*(.*?)\s*</function_call>`)

type rawCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
}

func (rc rawCall) toData() (ToolCallData, bool) {
	name, args := rc.Name, rc.Arguments
	if name == "" {
		name, args = rc.Tool, rc.Args
	}
	if name == "" {
		return ToolCallData{}, false
	}
	return ToolCallData{
		ID:        "call_" + uuid.New().String()[:8],
		Name:      name,
		Arguments: normalizeArguments(args),
	}, true
}

// extractToolCalls recognizes the shapes in which tool calls come back as
// text: <function_call>{...}</function_call> blocks, a [{"name","arguments"}]
// array, or a single {"tool","args"} object. It returns the calls and the
// text left once they are removed.
func extractToolCalls(text string) ([]ToolCallData, string) {
	var calls []ToolCallData

	if matches := functionCallBlock.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		for _, m := range matches {
			var rc rawCall
			if err := json.Unmarshal([]byte(m[1]), &rc); err != nil {
				continue
			}
			if tc, ok := rc.toData(); ok {
				calls = append(calls, tc)
			}
		}
		if len(calls) > 0 {
			return calls, strings.TrimSpace(functionCallBlock.ReplaceAllString(text, ""))
		}
	}

	if start := strings.Index(text, `[{"name"`); start != -1 {
		var rcs []rawCall
		if err := json.Unmarshal([]byte(text[start:]), &rcs); err == nil {
			for _, rc := range rcs {
				if tc, ok := rc.toData(); ok {
					calls = append(calls, tc)
				}
			}
			if len(calls) > 0 {
				return calls, strings.TrimSpace(text[:start])
			}
		}
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, `{`) {
		var rc rawCall
		if err := json.Unmarshal([]byte(trimmed), &rc); err == nil && rc.Tool != "" {
			if tc, ok := rc.toData(); ok {
				return []ToolCallData{tc}, ""
			}
		}
	}

	return nil, text
}

// normalizeArguments unwraps arguments that arrive as a JSON-encoded string
// (the OpenAI wire form) into raw JSON. Anything else passes through.
func normalizeArguments(args json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage(`{}`)
	}
	var s string
	if err := json.Unmarshal(args, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return json.RawMessage(`{}`)
		}
		return json.RawMessage(s)
	}
	return args
}

// translateError converts a gollm error into the transport error hierarchy.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	provider := func(status int, retryable bool) ProviderError {
		return ProviderError{
			SDKError:   SDKError{Message: msg, Cause: err},
			Provider:   a.provider,
			StatusCode: status,
			Retryable:  retryable,
		}
	}

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return &AuthenticationError{ProviderError: provider(401, false)}
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		return &AccessDeniedError{ProviderError: provider(403, false)}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return &NotFoundError{ProviderError: provider(404, false)}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return &RateLimitError{ProviderError: provider(429, true)}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return &ContextLengthError{ProviderError: provider(413, false)}
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server") || strings.Contains(lower, "503"):
		return &ServerError{ProviderError: provider(500, true)}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return &RequestTimeoutError{SDKError: SDKError{Message: msg, Cause: err}}
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &NetworkError{SDKError: SDKError{Message: msg, Cause: err}}
	case strings.Contains(lower, "content filter") || strings.Contains(lower, "safety"):
		return &ContentFilterError{ProviderError: provider(0, false)}
	default:
		p := provider(0, true)
		return &p
	}
}
