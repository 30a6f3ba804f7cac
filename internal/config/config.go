package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "FINANALYST"

// Bounds accepted for per-session tuning.
const (
	TextCharsMin    = 50000
	TextCharsMax    = 200000
	SummaryWordsMin = 150
	SummaryWordsMax = 500
	TemperatureMin  = 0.0
	TemperatureMax  = 1.0
)

type Config struct {
	APIAddr         string
	LogLevel        string
	CORSOrigins     []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	TemporalEnabled   bool
	TemporalAddress   string
	TemporalTaskQueue string
	PostgresURL       string
	DataInRoot        string
	DataOutRoot       string

	LLMProviders         string
	LLMTimeout           time.Duration
	ProviderCooldownSecs int
	OllamaBaseURL        string
	OllamaModel          string
	OpenRouterAPIKey     string
	OpenRouterModel      string
	OpenRouterBaseURL    string
	OpenRouterReferer    string
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIBaseURL        string
	GroqAPIKey           string
	GroqModel            string
	GeminiAPIKey         string
	GeminiModel          string

	Extractor          string
	MaxTextChars       int
	SummaryWords       int
	SummaryTemperature float64
	AnswerTemperature  float64
	SummaryMaxTokens   int
	AnswerMaxTokens    int
	PreviewChars       int
	MaxUploadMB        int

	SessionTTL   time.Duration
	JWTSecret    string
	TokenTTL     time.Duration
	AuthDisabled bool

	ReportStore string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string
}

// NewViper returns a viper instance with every default registered and env
// lookup enabled. Callers may bind flags on it before calling FromViper.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("api.request_timeout", "3m")
	v.SetDefault("api.shutdown_timeout", "15s")

	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.task_queue", "finanalyst")
	v.SetDefault("postgres.url", "")
	v.SetDefault("data.in", "./data/in")
	v.SetDefault("data.out", "./data/out")

	v.SetDefault("llm.providers", "ollama|openrouter|mock")
	v.SetDefault("llm.timeout", "5m")
	v.SetDefault("llm.cooldown_seconds", 900)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "")
	v.SetDefault("openrouter.api_key", "")
	v.SetDefault("openrouter.model", "mistralai/mistral-7b-instruct")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.referer", "http://localhost:8888/")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("groq.api_key", "")
	v.SetDefault("groq.model", "llama-3.1-8b-instant")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")

	v.SetDefault("extract.engine", "chain")
	v.SetDefault("extract.max_chars", 120000)
	v.SetDefault("summary.words", 300)
	v.SetDefault("summary.temperature", 0.3)
	v.SetDefault("answer.temperature", 0.1)
	v.SetDefault("summary.max_tokens", 2000)
	v.SetDefault("answer.max_tokens", 500)
	v.SetDefault("preview.chars", 2000)
	v.SetDefault("upload.max_mb", 50)

	v.SetDefault("session.ttl", "2h")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.disabled", false)

	v.SetDefault("reports.store", "local")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.prefix", "reports")

	// Vendor keys are also read under their conventional names.
	_ = v.BindEnv("openrouter.api_key", EnvPrefix+"_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("groq.api_key", EnvPrefix+"_GROQ_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("s3.access_key", EnvPrefix+"_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("s3.secret_key", EnvPrefix+"_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("s3.region", EnvPrefix+"_S3_REGION", "AWS_REGION")
	return v
}

// Load reads defaults, the optional YAML file named by FINANALYST_CONFIG and
// the environment, then validates the result.
func Load() (Config, error) {
	v := NewViper()
	if path := strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		APIAddr:         v.GetString("api.addr"),
		LogLevel:        v.GetString("log.level"),
		CORSOrigins:     splitList(v.GetString("cors.origins")),
		RequestTimeout:  v.GetDuration("api.request_timeout"),
		ShutdownTimeout: v.GetDuration("api.shutdown_timeout"),

		TemporalEnabled:   v.GetBool("temporal.enabled"),
		TemporalAddress:   v.GetString("temporal.address"),
		TemporalTaskQueue: v.GetString("temporal.task_queue"),
		PostgresURL:       v.GetString("postgres.url"),
		DataInRoot:        v.GetString("data.in"),
		DataOutRoot:       v.GetString("data.out"),

		LLMProviders:         v.GetString("llm.providers"),
		LLMTimeout:           v.GetDuration("llm.timeout"),
		ProviderCooldownSecs: v.GetInt("llm.cooldown_seconds"),
		OllamaBaseURL:        strings.TrimRight(v.GetString("ollama.base_url"), "/"),
		OllamaModel:          v.GetString("ollama.model"),
		OpenRouterAPIKey:     strings.TrimSpace(v.GetString("openrouter.api_key")),
		OpenRouterModel:      v.GetString("openrouter.model"),
		OpenRouterBaseURL:    v.GetString("openrouter.base_url"),
		OpenRouterReferer:    v.GetString("openrouter.referer"),
		OpenAIAPIKey:         strings.TrimSpace(v.GetString("openai.api_key")),
		OpenAIModel:          v.GetString("openai.model"),
		OpenAIBaseURL:        v.GetString("openai.base_url"),
		GroqAPIKey:           strings.TrimSpace(v.GetString("groq.api_key")),
		GroqModel:            v.GetString("groq.model"),
		GeminiAPIKey:         strings.TrimSpace(v.GetString("gemini.api_key")),
		GeminiModel:          v.GetString("gemini.model"),

		Extractor:          strings.ToLower(v.GetString("extract.engine")),
		MaxTextChars:       v.GetInt("extract.max_chars"),
		SummaryWords:       v.GetInt("summary.words"),
		SummaryTemperature: v.GetFloat64("summary.temperature"),
		AnswerTemperature:  v.GetFloat64("answer.temperature"),
		SummaryMaxTokens:   v.GetInt("summary.max_tokens"),
		AnswerMaxTokens:    v.GetInt("answer.max_tokens"),
		PreviewChars:       v.GetInt("preview.chars"),
		MaxUploadMB:        v.GetInt("upload.max_mb"),

		SessionTTL:   v.GetDuration("session.ttl"),
		JWTSecret:    v.GetString("auth.jwt_secret"),
		TokenTTL:     v.GetDuration("auth.token_ttl"),
		AuthDisabled: v.GetBool("auth.disabled"),

		ReportStore: strings.ToLower(v.GetString("reports.store")),
		S3Bucket:    v.GetString("s3.bucket"),
		S3Region:    v.GetString("s3.region"),
		S3Endpoint:  v.GetString("s3.endpoint"),
		S3AccessKey: v.GetString("s3.access_key"),
		S3SecretKey: v.GetString("s3.secret_key"),
		S3Prefix:    v.GetString("s3.prefix"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxTextChars < TextCharsMin || c.MaxTextChars > TextCharsMax {
		return fmt.Errorf("extract.max_chars must be within [%d, %d], got %d", TextCharsMin, TextCharsMax, c.MaxTextChars)
	}
	if c.SummaryWords < SummaryWordsMin || c.SummaryWords > SummaryWordsMax {
		return fmt.Errorf("summary.words must be within [%d, %d], got %d", SummaryWordsMin, SummaryWordsMax, c.SummaryWords)
	}
	for name, t := range map[string]float64{"summary.temperature": c.SummaryTemperature, "answer.temperature": c.AnswerTemperature} {
		if t < TemperatureMin || t > TemperatureMax {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, t)
		}
	}
	if c.SummaryMaxTokens <= 0 || c.AnswerMaxTokens <= 0 {
		return fmt.Errorf("max token budgets must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("upload.max_mb must be positive")
	}
	switch c.Extractor {
	case "native", "docconv", "chain":
	default:
		return fmt.Errorf("unsupported extract.engine %q", c.Extractor)
	}
	switch c.ReportStore {
	case "local", "none":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("reports.store=s3 requires s3.bucket")
		}
	default:
		return fmt.Errorf("unsupported reports.store %q", c.ReportStore)
	}
	if !c.AuthDisabled && len(c.JWTSecret) > 0 && len(c.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	return nil
}

// ClampMaxChars bounds a requested text budget. Zero and negative values mean
// "not set" and are returned as 0 so callers fall back to the configured default.
func ClampMaxChars(n int) int {
	switch {
	case n <= 0:
		return 0
	case n < TextCharsMin:
		return TextCharsMin
	case n > TextCharsMax:
		return TextCharsMax
	}
	return n
}

func ClampSummaryWords(n int) int {
	switch {
	case n <= 0:
		return 0
	case n < SummaryWordsMin:
		return SummaryWordsMin
	case n > SummaryWordsMax:
		return SummaryWordsMax
	}
	return n
}

func ClampTemperature(t float64) float64 {
	if t < TemperatureMin {
		return TemperatureMin
	}
	if t > TemperatureMax {
		return TemperatureMax
	}
	return t
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
