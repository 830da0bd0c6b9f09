package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// encodingFor resolves the tokenizer for a model. Unknown models use the catalog
// hint and then cl100k_base. A nil return means no tokenizer could be loaded
// (tiktoken fetches BPE ranks lazily) and callers fall back to a char estimate.
func encodingFor(model string) *tiktoken.Tiktoken {
	name := fallbackEncoding
	if info := GetModelInfo(model); info != nil && info.Encoding != "" {
		name = info.Encoding
	}

	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	if enc, ok := encodings[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
	}
	if err != nil {
		enc = nil
	}
	// Cache failures too so an offline host does not retry the download per call.
	encodings[model] = enc
	return enc
}

// CountTokens returns the token count of text for the given model.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := encodingFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// EstimateRequestTokens estimates the prompt size of a request, including
// tool definitions.
func EstimateRequestTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			switch part.Kind {
			case ContentText:
				total += CountTokens(req.Model, part.Text)
			case ContentToolCall:
				if part.ToolCall != nil {
					total += CountTokens(req.Model, part.ToolCall.Name+string(part.ToolCall.Arguments))
				}
			}
		}
	}
	for _, tool := range req.Tools {
		total += CountTokens(req.Model, tool.Name+" "+tool.Description)
	}
	return total
}
