package providers

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Operation string    `json:"operation"`
	Model     string    `json:"model,omitempty"`
	System    string    `json:"system"`
	Messages  []Message `json:"messages"`
	// Temperature is left to the endpoint default when nil.
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
}

type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, ProviderInfo, error)
}

// ModelLister is implemented by providers that can report the models they
// serve. A successful call doubles as a connectivity check.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

func Temperature(t float64) *float32 {
	v := float32(t)
	return &v
}
