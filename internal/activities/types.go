package activities

import "github.com/commercebatola-sys/Outil1/internal/models"

type UpdateAnalysisInput struct {
	Analysis models.Analysis `json:"analysis"`
}

type ExtractTextInput struct {
	Path     string `json:"path"`
	MaxChars int    `json:"max_chars"`
}

type ExtractTextOutput struct {
	Text      string `json:"text"`
	Pages     int    `json:"pages"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
	Extractor string `json:"extractor"`
	SHA256    string `json:"sha256"`
}

type LLMChatInput struct {
	Operation     string `json:"operation"`
	AnalysisID    string `json:"analysis_id"`
	ProviderIndex int    `json:"provider_index"`
	ProviderRef   string `json:"provider_ref,omitempty"`
	Model         string `json:"model,omitempty"`
	System        string `json:"system"`
	User          string `json:"user"`
}

type LLMChatOutput struct {
	Text             string `json:"text"`
	ProviderName     string `json:"provider_name"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	LatencyMs        int64  `json:"latency_ms"`
}

type WriteReportInput struct {
	AnalysisID string      `json:"analysis_id"`
	Filename   string      `json:"filename"`
	Summary    string      `json:"summary"`
	Answers    []models.QA `json:"answers"`
	Pages      int         `json:"pages"`
	Chars      int         `json:"chars"`
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
}

type WriteReportOutput struct {
	Location     string `json:"location"`
	XLSXLocation string `json:"xlsx_location,omitempty"`
}

type LogLLMCallInput struct {
	CallID           string `json:"call_id"`
	Operation        string `json:"operation"`
	AnalysisID       string `json:"analysis_id"`
	ProviderName     string `json:"provider_name"`
	Model            string `json:"model"`
	RequestID        string `json:"request_id"`
	Status           string `json:"status"`
	ErrorType        string `json:"error_type"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	LatencyMs        int64  `json:"latency_ms"`
}
