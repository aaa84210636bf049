package domain

// ChatMessage is the provider-agnostic chat message shape used by prompt
// assembly and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries one text-generation call. Zero sampling values
// leave the provider default in place.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}
