package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/util"

	"github.com/sashabaranov/go-openai"
)

// OpenRouterModels is the curated menu offered for the OpenRouter gateway.
var OpenRouterModels = []string{
	"mistralai/mistral-7b-instruct",
	"meta-llama/llama-3.1-8b-instruct",
	"anthropic/claude-3-haiku",
}

// CompatConfig describes an OpenAI-compatible chat endpoint.
type CompatConfig struct {
	Name    string
	Alias   string
	BaseURL string
	APIKey  string
	Model   string
	// Models, when set, is returned by ListModels without a network call.
	Models  []string
	Headers map[string]string
	Timeout time.Duration
	// ValidateKey rejects keys shorter than MinAPIKeyLength before any request.
	ValidateKey bool
}

// OpenAICompatProvider serves OpenAI, Groq and OpenRouter through go-openai.
type OpenAICompatProvider struct {
	cfg    CompatConfig
	client *openai.Client
}

func NewOpenAICompatProvider(cfg CompatConfig) *OpenAICompatProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	cfg.APIKey = resolveAliasKey(cfg.Name, cfg.Alias, cfg.APIKey)
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: headerTransport{headers: cfg.Headers, next: http.DefaultTransport},
	}
	return &OpenAICompatProvider{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

func (p *OpenAICompatProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: p.cfg.Name, Model: model, Key: p.cfg.Alias}
}

func (p *OpenAICompatProvider) checkKey() error {
	if p.cfg.ValidateKey {
		if err := validateAPIKey(p.cfg.APIKey); err != nil {
			return fmt.Errorf("%s: %w", p.cfg.Name, err)
		}
	} else if p.cfg.APIKey == "" {
		return fmt.Errorf("%s key missing for alias %q: %w", p.cfg.Name, p.cfg.Alias, ErrMissingAPIKey)
	}
	return nil
}

func (p *OpenAICompatProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, ProviderInfo, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.cfg.Model
	}
	if err := p.checkKey(); err != nil {
		return ChatResponse{}, p.info(model), err
	}
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	creq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = *req.Temperature
		// go-openai omits a zero temperature; the gateway would then apply
		// its own default.
		if creq.Temperature == 0 {
			creq.Temperature = math.SmallestNonzeroFloat32
		}
	}
	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return ChatResponse{}, p.info(model), p.wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, p.info(model), fmt.Errorf("%s returned empty choices: %w", p.cfg.Name, ErrEmptyResponse)
	}
	if resp.Model != "" {
		model = resp.Model
	}
	return ChatResponse{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, p.info(model), nil
}

func (p *OpenAICompatProvider) ListModels(ctx context.Context) ([]string, error) {
	if err := p.checkKey(); err != nil {
		return nil, err
	}
	if len(p.cfg.Models) > 0 {
		return append([]string(nil), p.cfg.Models...), nil
	}
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, p.wrapErr(err)
	}
	out := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		out = append(out, m.ID)
	}
	return out, nil
}

func (p *OpenAICompatProvider) DefaultModel() string {
	return p.cfg.Model
}

func (p *OpenAICompatProvider) wrapErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if fmt.Sprint(apiErr.Code) == "context_length_exceeded" {
			return fmt.Errorf("%s chat error %d: %w: %w", p.cfg.Name, apiErr.HTTPStatusCode, util.ErrContextTooLong, err)
		}
		return p.statusErr(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return p.statusErr(reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("%s chat request failed: %w", p.cfg.Name, err)
}

func (p *OpenAICompatProvider) statusErr(code int, err error) error {
	if s := statusSentinel(code); s != nil {
		return fmt.Errorf("%s chat error %d: %w: %w", p.cfg.Name, code, s, err)
	}
	return fmt.Errorf("%s chat error %d: %w", p.cfg.Name, code, err)
}

// headerTransport adds fixed headers, such as OpenRouter's HTTP-Referer, to
// every outgoing request.
type headerTransport struct {
	headers map[string]string
	next    http.RoundTripper
}

func (t headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if len(t.headers) > 0 {
		r = r.Clone(r.Context())
		for k, v := range t.headers {
			if v != "" {
				r.Header.Set(k, v)
			}
		}
	}
	return t.next.RoundTrip(r)
}

// resolveAliasKey lets "openrouter:team" pick FINANALYST_OPENROUTER_KEY_TEAM.
func resolveAliasKey(name, alias, fallback string) string {
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv("FINANALYST_" + sanitizeEnvToken(name) + "_KEY_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
	}
	return strings.TrimSpace(fallback)
}
