package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider uses Google's Gemini API. The client is created on first use
// because construction needs a context and a key.
type GeminiProvider struct {
	alias  string
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

func NewGeminiProvider(alias, apiKey, model string) *GeminiProvider {
	if strings.TrimSpace(model) == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiProvider{
		alias:  alias,
		apiKey: resolveAliasKey("gemini", alias, apiKey),
		model:  model,
	}
}

func (g *GeminiProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "gemini", Model: model, Key: g.alias}
}

func (g *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("gemini key missing for alias %q: %w", g.alias, ErrMissingAPIKey)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.client = cl
	return cl, nil
}

func (g *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, ProviderInfo, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = g.model
	}
	if len(req.Messages) == 0 {
		return ChatResponse{}, g.info(model), fmt.Errorf("gemini: no messages to send")
	}
	cl, err := g.getClient(ctx)
	if err != nil {
		return ChatResponse{}, g.info(model), err
	}
	m := cl.GenerativeModel(model)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature != nil {
		m.SetTemperature(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	cs := m.StartChat()
	last := req.Messages[len(req.Messages)-1]
	for _, msg := range req.Messages[:len(req.Messages)-1] {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return ChatResponse{}, g.info(model), fmt.Errorf("gemini chat request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ChatResponse{}, g.info(model), fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := ChatResponse{Text: b.String()}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, g.info(model), nil
}

func (g *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	cl, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}
	it := cl.ListModels(ctx)
	out := make([]string, 0, 16)
	for {
		mi, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini list models: %w", err)
		}
		out = append(out, strings.TrimPrefix(mi.Name, "models/"))
	}
	return out, nil
}

func (g *GeminiProvider) DefaultModel() string {
	return g.model
}

func (g *GeminiProvider) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}
