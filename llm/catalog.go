package llm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	SupportsTools bool     `json:"supports_tools"`
	Encoding      string   `json:"encoding,omitempty"` // tiktoken encoding used for estimates
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. The first entry per provider is the
// provider default.
var Models = []ModelInfo{
	// OpenAI
	{
		ID: "gpt-5.2-mini", Provider: "openai", DisplayName: "GPT-5.2 Mini",
		ContextWindow: 1047576, SupportsTools: true, Encoding: "o200k_base",
		Aliases: []string{"gpt5-mini"},
	},
	{
		ID: "gpt-5.2", Provider: "openai", DisplayName: "GPT-5.2",
		ContextWindow: 1047576, SupportsTools: true, Encoding: "o200k_base",
		Aliases: []string{"gpt5"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, SupportsTools: true, Encoding: "o200k_base",
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"opus", "claude-opus"},
	},

	// Ollama (local)
	{
		ID: "gpt-oss:20b", Provider: "ollama", DisplayName: "gpt-oss 20B",
		ContextWindow: 131072, SupportsTools: true, Encoding: "o200k_base",
	},
	{
		ID: "qwen2.5-coder:7b", Provider: "ollama", DisplayName: "Qwen2.5 Coder 7B",
		ContextWindow: 32768, SupportsTools: true,
	},
}

// GetModelInfo returns the catalog entry for a model id or alias, or nil.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// DefaultModel returns the default model for a provider, or nil.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}
