package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// OllamaProvider talks to a local Ollama runtime over its REST API.
// When no model is configured the first installed model is used.
type OllamaProvider struct {
	alias   string
	baseURL string
	model   string
	client  *http.Client

	mu           sync.Mutex
	defaultModel string
}

func NewOllamaProvider(alias, baseURL, model string, timeout time.Duration) *OllamaProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &OllamaProvider{
		alias:   alias,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   resolveOllamaModel(alias, model),
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OllamaProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "ollama", Model: model, Key: o.alias}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
	Error           string  `json:"error"`
}

func (o *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, ProviderInfo, error) {
	model, err := o.resolveModel(ctx, req.Model)
	if err != nil {
		return ChatResponse{}, o.info(model), err
	}
	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: req.System})
	}
	msgs = append(msgs, req.Messages...)
	options := map[string]any{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	payload, _ := json.Marshal(ollamaChatRequest{Model: model, Messages: msgs, Stream: false, Options: options})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, o.info(model), fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, o.info(model), fmt.Errorf("ollama chat request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return ChatResponse{}, o.info(model), httpError("ollama chat error", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed ollamaChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ChatResponse{}, o.info(model), fmt.Errorf("decode ollama chat response: %w", err)
	}
	if parsed.Error != "" {
		return ChatResponse{}, o.info(model), fmt.Errorf("ollama chat error: %s", parsed.Error)
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return ChatResponse{}, o.info(model), fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	return ChatResponse{
		Text:             parsed.Message.Content,
		PromptTokens:     parsed.PromptEvalCount,
		CompletionTokens: parsed.EvalCount,
	}, o.info(model), nil
}

// ListModels returns installed model names from /api/tags.
func (o *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama list models failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, httpError("ollama list models error", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode ollama tags: %w", err)
	}
	out := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}

func (o *OllamaProvider) resolveModel(ctx context.Context, requested string) (string, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested, nil
	}
	if o.model != "" {
		return o.model, nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.defaultModel != "" {
		return o.defaultModel, nil
	}
	models, err := o.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 {
		return "", fmt.Errorf("ollama: %w", ErrNoModels)
	}
	o.defaultModel = models[0]
	return o.defaultModel, nil
}

func (o *OllamaProvider) DefaultModel() string {
	if o.model != "" {
		return o.model
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.defaultModel
}

// resolveOllamaModel maps a provider alias to a model. An alias that already
// looks like a model tag (llama3.1:8b, mistral-nemo) is used as is; other
// aliases may be bound through FINANALYST_OLLAMA_MODEL_<ALIAS>.
func resolveOllamaModel(alias, fallback string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv("FINANALYST_OLLAMA_MODEL_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
		if strings.ContainsAny(alias, ":-./") {
			return alias
		}
	}
	return strings.TrimSpace(fallback)
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
