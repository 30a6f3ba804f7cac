package workflows

type DocumentAnalysisInput struct {
	AnalysisID   string   `json:"analysis_id"`
	Path         string   `json:"path"`
	Filename     string   `json:"filename"`
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	MaxChars     int      `json:"max_chars,omitempty"`
	SummaryWords int      `json:"summary_words,omitempty"`
	Sector       string   `json:"sector,omitempty"`
	Questions    []string `json:"questions,omitempty"`
	// ProviderRefs is the failover order used when Provider is empty.
	ProviderRefs    []string `json:"provider_refs,omitempty"`
	CooldownSeconds int      `json:"cooldown_seconds,omitempty"`
}

type AnalysisProgress struct {
	AnalysisID     string            `json:"analysis_id"`
	Status         string            `json:"status"`
	CurrentStep    string            `json:"current_step"`
	Steps          map[string]string `json:"steps"`
	RetryCounts    map[string]int    `json:"retry_counts"`
	Pages          int               `json:"pages"`
	Chars          int               `json:"chars"`
	Questions      int               `json:"questions"`
	Answered       int               `json:"answered"`
	Provider       string            `json:"provider,omitempty"`
	Model          string            `json:"model,omitempty"`
	ReportLocation string            `json:"report_location,omitempty"`
	FailReason     string            `json:"fail_reason,omitempty"`
}
