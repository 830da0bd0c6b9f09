package agent

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/martinemde/goalagent/llm"
)

// LLMOracle asks a model through an llm.Client. Transport failures are
// retried according to its retry policy before being reported.
type LLMOracle struct {
	client      *llm.Client
	model       string
	provider    string
	temperature *float64
	retry       llm.RetryPolicy
	log         logr.Logger
}

// LLMOracleOption configures an LLMOracle.
type LLMOracleOption func(*LLMOracle)

// WithModel sets the model requested on every call.
func WithModel(model string) LLMOracleOption {
	return func(o *LLMOracle) {
		o.model = model
	}
}

// WithProvider pins calls to a registered provider.
func WithProvider(provider string) LLMOracleOption {
	return func(o *LLMOracle) {
		o.provider = provider
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) LLMOracleOption {
	return func(o *LLMOracle) {
		o.temperature = &t
	}
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p llm.RetryPolicy) LLMOracleOption {
	return func(o *LLMOracle) {
		o.retry = p
	}
}

// WithOracleLogger sets the logger used to report retries.
func WithOracleLogger(log logr.Logger) LLMOracleOption {
	return func(o *LLMOracle) {
		o.log = log
	}
}

// NewLLMOracle creates an oracle backed by client.
func NewLLMOracle(client *llm.Client, opts ...LLMOracleOption) *LLMOracle {
	o := &LLMOracle{
		client: client,
		retry:  llm.DefaultRetryPolicy(),
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate sends the prompt as a chat request and returns the text and tool
// calls of the reply.
func (o *LLMOracle) Generate(ctx context.Context, prompt Prompt) (RawOutput, error) {
	req := o.buildRequest(prompt)

	policy := o.retry
	if policy.OnRetry == nil {
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			o.log.Info("retrying model call", "attempt", attempt, "delay", delay.String(), "error", err.Error())
		}
	}

	resp, err := llm.Retry(ctx, policy, func(ctx context.Context) (*llm.Response, error) {
		return o.client.Complete(ctx, req)
	})
	if err != nil {
		return RawOutput{}, err
	}

	out := RawOutput{Text: resp.Text()}
	for _, tc := range resp.ToolCalls() {
		out.ToolCalls = append(out.ToolCalls, RawToolCall{
			Name:      tc.Name,
			Arguments: string(tc.Arguments),
		})
	}
	return out, nil
}

func (o *LLMOracle) buildRequest(prompt Prompt) llm.Request {
	req := llm.Request{
		Model:       o.model,
		Provider:    o.provider,
		Temperature: o.temperature,
		MaxTokens:   prompt.MaxTokens,
	}
	for _, msg := range prompt.Messages {
		switch msg.Role {
		case RoleSystem:
			req.Messages = append(req.Messages, llm.SystemMessage(msg.Content))
		case RoleAssistant:
			req.Messages = append(req.Messages, llm.AssistantMessage(msg.Content))
		default:
			req.Messages = append(req.Messages, llm.UserMessage(msg.Content))
		}
	}
	if len(prompt.Tools) > 0 {
		req.Tools = make([]llm.ToolDefinition, len(prompt.Tools))
		for i, schema := range prompt.Tools {
			req.Tools[i] = llm.ToolDefinition{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			}
		}
		req.ToolChoice = &llm.ToolChoice{Mode: "auto"}
	}
	return req
}
