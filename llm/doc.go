// Package llm is the transport between an agent and a language model. It
// wraps gollm (github.com/teilomillet/gollm) behind a small provider-agnostic
// request/response model so the agent core never sees provider details.
//
// # Layers
//
//   - ProviderAdapter: one backend (GollmAdapter is the production one).
//   - Client: routes a Request to an adapter by provider name and runs it
//     through a middleware chain (rate limiting, logging).
//   - Retry: exponential backoff for errors classified as retryable.
//
// # Quick Start
//
//	adapter, err := llm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"),
//	    llm.WithModel("gpt-5.2-mini"))
//	if err != nil {
//	    return err
//	}
//	client := llm.NewClient(
//	    llm.WithProvider("openai", adapter),
//	    llm.WithMiddleware(llm.RateLimitMiddleware(rate.NewLimiter(2, 4))),
//	)
//	resp, err := client.Complete(ctx, llm.Request{
//	    Messages: []llm.Message{llm.UserMessage("Hello")},
//	})
//
// # Tool Calls
//
// Tools are described with ToolDefinition (name, description, JSON schema).
// A model reply may carry tool calls; Response.ToolCalls returns them in
// order. Callers that honor a single call per turn take the first one.
package llm
