package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FINANALYST_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Equal(t, 120000, cfg.MaxTextChars)
	require.Equal(t, 300, cfg.SummaryWords)
	require.InDelta(t, 0.3, cfg.SummaryTemperature, 1e-9)
	require.InDelta(t, 0.1, cfg.AnswerTemperature, 1e-9)
	require.Equal(t, 2000, cfg.SummaryMaxTokens)
	require.Equal(t, 500, cfg.AnswerMaxTokens)
	require.Equal(t, "http://localhost:8888/", cfg.OpenRouterReferer)
	require.Equal(t, 2*time.Hour, cfg.SessionTTL)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FINANALYST_CONFIG", "")
	t.Setenv("FINANALYST_EXTRACT_MAX_CHARS", "60000")
	t.Setenv("FINANALYST_LLM_PROVIDERS", "openrouter:team|mock")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-v1-0123456789abcdef")
	t.Setenv("FINANALYST_SESSION_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 60000, cfg.MaxTextChars)
	require.Equal(t, "openrouter:team|mock", cfg.LLMProviders)
	require.Equal(t, "sk-or-v1-0123456789abcdef", cfg.OpenRouterAPIKey)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "finanalyst.yaml")
	require.NoError(t, os.WriteFile(path, []byte("summary:\n  words: 450\nollama:\n  model: llama3.1:8b\n"), 0o600))
	t.Setenv("FINANALYST_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 450, cfg.SummaryWords)
	require.Equal(t, "llama3.1:8b", cfg.OllamaModel)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	t.Setenv("FINANALYST_CONFIG", "")
	t.Setenv("FINANALYST_EXTRACT_MAX_CHARS", "1000")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("FINANALYST_EXTRACT_MAX_CHARS", "")
	t.Setenv("FINANALYST_REPORTS_STORE", "s3")
	_, err = Load()
	require.ErrorContains(t, err, "s3.bucket")
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0, ClampMaxChars(0))
	require.Equal(t, TextCharsMin, ClampMaxChars(10))
	require.Equal(t, TextCharsMax, ClampMaxChars(10_000_000))
	require.Equal(t, 90000, ClampMaxChars(90000))

	require.Equal(t, SummaryWordsMin, ClampSummaryWords(20))
	require.Equal(t, SummaryWordsMax, ClampSummaryWords(900))

	require.InDelta(t, 1.0, ClampTemperature(3), 1e-9)
	require.InDelta(t, 0.0, ClampTemperature(-1), 1e-9)
}
