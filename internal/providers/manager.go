package providers

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/config"

	"golang.org/x/sync/errgroup"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type Manager struct {
	llmProviders []NamedLLMProvider
}

// ProviderStatus is the outcome of a connectivity check for one provider.
type ProviderStatus struct {
	Name         string   `json:"name"`
	Ref          string   `json:"ref"`
	Connected    bool     `json:"connected"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type defaultModeler interface {
	DefaultModel() string
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

// NewManagerWith wraps already-built providers, keeping their order.
func NewManagerWith(list ...NamedLLMProvider) *Manager {
	m := &Manager{llmProviders: append([]NamedLLMProvider(nil), list...)}
	if len(m.llmProviders) == 0 {
		m.llmProviders = []NamedLLMProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()}}
	}
	return m
}

func (m *Manager) LLMProviderByIndex(i int) (LLMProvider, ProviderRef) {
	if len(m.llmProviders) == 0 {
		return NewMockProvider(), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.llmProviders) {
		i = 0
	}
	return m.llmProviders[i].Provider, m.llmProviders[i].Ref
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

// PreferredLLMOrder lists provider indexes with mock providers last.
func (m *Manager) PreferredLLMOrder() []int {
	n := len(m.llmProviders)
	if n == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !strings.EqualFold(m.llmProviders[i].Ref.Name, "mock") {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if strings.EqualFold(m.llmProviders[i].Ref.Name, "mock") {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) FindLLMProviderByName(name string) (LLMProvider, ProviderRef, bool) {
	idx := m.FindLLMProviderIndex(name)
	if idx < 0 {
		return nil, ProviderRef{}, false
	}
	return m.llmProviders[idx].Provider, m.llmProviders[idx].Ref, true
}

// FindLLMProviderIndex matches raw against the full ref ("openrouter:team")
// first and the bare provider name second.
func (m *Manager) FindLLMProviderIndex(raw string) int {
	target := strings.ToLower(strings.TrimSpace(raw))
	if target == "" {
		return -1
	}
	for i := range m.llmProviders {
		if strings.ToLower(m.llmProviders[i].Ref.Raw) == target {
			return i
		}
	}
	for i := range m.llmProviders {
		if strings.ToLower(m.llmProviders[i].Ref.Name) == target {
			return i
		}
	}
	return -1
}

// Resolve returns the named provider, or the preferred one when name is empty.
func (m *Manager) Resolve(name string) (LLMProvider, ProviderRef, error) {
	if strings.TrimSpace(name) == "" {
		order := m.PreferredLLMOrder()
		if len(order) == 0 {
			return nil, ProviderRef{}, fmt.Errorf("no llm providers configured")
		}
		return m.llmProviders[order[0]].Provider, m.llmProviders[order[0]].Ref, nil
	}
	p, ref, ok := m.FindLLMProviderByName(name)
	if !ok {
		return nil, ProviderRef{}, fmt.Errorf("llm provider not configured: %s", name)
	}
	return p, ref, nil
}

// CheckAll lists models for every provider concurrently. Individual failures
// are reported in the status rather than returned.
func (m *Manager) CheckAll(ctx context.Context, timeout time.Duration) []ProviderStatus {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	out := make([]ProviderStatus, len(m.llmProviders))
	g, gctx := errgroup.WithContext(ctx)
	for i := range m.llmProviders {
		np := m.llmProviders[i]
		g.Go(func() error {
			st := ProviderStatus{Name: np.Ref.Name, Ref: np.Ref.Raw, Models: []string{}}
			if dm, ok := np.Provider.(defaultModeler); ok {
				st.DefaultModel = dm.DefaultModel()
			}
			lister, ok := np.Provider.(ModelLister)
			if !ok {
				st.Connected = true
				out[i] = st
				return nil
			}
			cctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			models, err := lister.ListModels(cctx)
			switch {
			case err != nil:
				st.Error = err.Error()
			case len(models) == 0:
				st.Error = ErrNoModels.Error()
			default:
				st.Connected = true
				st.Models = models
				if st.DefaultModel == "" {
					st.DefaultModel = models[0]
				}
			}
			out[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (m *Manager) Close() error {
	var firstErr error
	for _, np := range m.llmProviders {
		if c, ok := np.Provider.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func buildProvider(ref ProviderRef, cfg config.Config) (LLMProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias, cfg.OllamaBaseURL, cfg.OllamaModel, cfg.LLMTimeout), nil
	case "openrouter":
		alias, model := ref.KeyAlias, cfg.OpenRouterModel
		// openrouter:vendor/model pins a model instead of naming a key.
		if strings.Contains(alias, "/") {
			alias, model = "", ref.KeyAlias
		}
		models := append([]string(nil), OpenRouterModels...)
		if model != "" && !slices.Contains(models, model) {
			models = append([]string{model}, models...)
		}
		return NewOpenAICompatProvider(CompatConfig{
			Name:    "openrouter",
			Alias:   alias,
			BaseURL: cfg.OpenRouterBaseURL,
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   model,
			Models:  models,
			Headers: map[string]string{
				"HTTP-Referer": cfg.OpenRouterReferer,
				"X-Title":      "Analyseur financier",
			},
			Timeout:     cfg.LLMTimeout,
			ValidateKey: true,
		}), nil
	case "openai":
		return NewOpenAICompatProvider(CompatConfig{
			Name:    "openai",
			Alias:   ref.KeyAlias,
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.LLMTimeout,
		}), nil
	case "groq":
		return NewOpenAICompatProvider(CompatConfig{
			Name:    "groq",
			Alias:   ref.KeyAlias,
			BaseURL: "https://api.groq.com/openai/v1",
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.GroqModel,
			Timeout: cfg.LLMTimeout,
		}), nil
	case "gemini":
		return NewGeminiProvider(ref.KeyAlias, cfg.GeminiAPIKey, cfg.GeminiModel), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
