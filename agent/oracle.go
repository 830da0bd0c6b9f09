package agent

import "context"

// Oracle decides the next step given a prompt.
type Oracle interface {
	Generate(ctx context.Context, prompt Prompt) (RawOutput, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt Prompt) (RawOutput, error)

// Generate calls f.
func (f OracleFunc) Generate(ctx context.Context, prompt Prompt) (RawOutput, error) {
	return f(ctx, prompt)
}
