package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/util"

	"github.com/stretchr/testify/require"
)

const testKey = "sk-or-v1-0123456789abcdef0123"

func TestOpenRouterChatSendsGatewayHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		require.Equal(t, "http://localhost:8888/", r.Header.Get("HTTP-Referer"))
		require.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			MaxTokens int `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "anthropic/claude-3-haiku", body.Model)
		require.Len(t, body.Messages, 2)
		require.Equal(t, "system", body.Messages[0].Role)
		require.Equal(t, 500, body.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gen-1","object":"chat.completion","model":"anthropic/claude-3-haiku",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Résultat net : 4 M€ (=== [PAGE 3] ===)"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`))
	}))
	defer srv.Close()

	cfg := config.Config{
		OpenRouterBaseURL: srv.URL + "/api/v1",
		OpenRouterAPIKey:  testKey,
		OpenRouterModel:   "mistralai/mistral-7b-instruct",
		OpenRouterReferer: "http://localhost:8888/",
		LLMTimeout:        time.Second,
	}
	p, err := buildProvider(ProviderRef{Raw: "openrouter", Name: "openrouter"}, cfg)
	require.NoError(t, err)

	resp, info, err := p.Chat(context.Background(), ChatRequest{
		Operation: "question",
		Model:     "anthropic/claude-3-haiku",
		System:    "sys",
		Messages:  []Message{{Role: RoleUser, Content: "Question : ?"}},
		MaxTokens: 500,
	})
	require.NoError(t, err)
	require.Contains(t, resp.Text, "Résultat net")
	require.Equal(t, 12, resp.PromptTokens)
	require.Equal(t, "openrouter", info.Name)
	require.Equal(t, "anthropic/claude-3-haiku", info.Model)
}

func TestOpenRouterRejectsShortKeyWithoutCalling(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	p, err := buildProvider(ProviderRef{Raw: "openrouter", Name: "openrouter"}, config.Config{
		OpenRouterBaseURL: srv.URL,
		OpenRouterAPIKey:  "too-short",
	})
	require.NoError(t, err)
	_, _, err = p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.True(t, errors.Is(err, ErrInvalidAPIKey), "got %v", err)

	_, err = p.(ModelLister).ListModels(context.Background())
	require.True(t, errors.Is(err, ErrInvalidAPIKey))
	require.False(t, called)
}

func TestOpenRouterRateLimitIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit exceeded","type":"rate_limit_error","code":429}}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatProvider(CompatConfig{Name: "openrouter", BaseURL: srv.URL, APIKey: testKey, Model: "m", ValidateKey: true})
	_, _, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "openrouter chat error 429")
	require.Equal(t, ErrorRate, ClassifyError(err))
}

func TestOpenRouterModelMenu(t *testing.T) {
	p, err := buildProvider(ProviderRef{Raw: "openrouter:meta-llama/llama-3.2-3b-instruct", Name: "openrouter", KeyAlias: "meta-llama/llama-3.2-3b-instruct"}, config.Config{
		OpenRouterAPIKey: testKey,
		OpenRouterModel:  "mistralai/mistral-7b-instruct",
	})
	require.NoError(t, err)
	models, err := p.(ModelLister).ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, "meta-llama/llama-3.2-3b-instruct", models[0])
	require.Subset(t, models, OpenRouterModels)
	require.Equal(t, "meta-llama/llama-3.2-3b-instruct", p.(defaultModeler).DefaultModel())
}

func TestAliasKeyResolution(t *testing.T) {
	t.Setenv("FINANALYST_OPENAI_KEY_TEAM", "sk-team-key")
	require.Equal(t, "sk-team-key", resolveAliasKey("openai", "team", "sk-default"))
	require.Equal(t, "sk-default", resolveAliasKey("openai", "other", "sk-default"))
	require.Equal(t, "sk-default", resolveAliasKey("openai", "", " sk-default "))
}

func TestOpenAIMissingKey(t *testing.T) {
	p := NewOpenAICompatProvider(CompatConfig{Name: "openai", Alias: "k1", Model: "gpt-4o-mini"})
	_, info, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.True(t, errors.Is(err, ErrMissingAPIKey))
	require.Equal(t, "gpt-4o-mini", info.Model)
	require.Equal(t, ErrorPermanent, ClassifyError(err))
}

func TestZeroTemperatureReachesGateway(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatProvider(CompatConfig{Name: "openai", Alias: "default", BaseURL: srv.URL, APIKey: testKey, Model: "gpt-4o-mini"})
	_, _, err := p.Chat(context.Background(), ChatRequest{
		Messages:    []Message{{Role: RoleUser, Content: "x"}},
		Temperature: Temperature(0),
	})
	require.NoError(t, err)
	temp, ok := body["temperature"]
	require.True(t, ok, "temperature must be sent")
	require.InDelta(t, 0, temp.(float64), 1e-9)
}

func TestGatewayStatusAttachesSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Insufficient balance","code":402}}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatProvider(CompatConfig{Name: "openrouter", Alias: "default", BaseURL: srv.URL, APIKey: testKey, Model: "m"})
	_, _, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.ErrorIs(t, err, util.ErrQuotaExhausted)
	require.Equal(t, ErrorQuota, ClassifyError(err))
}
