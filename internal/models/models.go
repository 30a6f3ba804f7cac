package models

import "time"

type AnalysisStatus string

const (
	AnalysisQueued  AnalysisStatus = "queued"
	AnalysisRunning AnalysisStatus = "running"
	AnalysisDone    AnalysisStatus = "done"
	AnalysisFailed  AnalysisStatus = "failed"
)

// Analysis is one asynchronous document analysis, or an archived interactive
// summary when Source is "session".
type Analysis struct {
	AnalysisID     string         `json:"analysis_id"`
	Source         string         `json:"source"`
	SessionID      string         `json:"session_id,omitempty"`
	Filename       string         `json:"filename"`
	SHA256         string         `json:"sha256,omitempty"`
	Status         AnalysisStatus `json:"status"`
	Provider       string         `json:"provider,omitempty"`
	Model          string         `json:"model,omitempty"`
	Pages          int            `json:"pages"`
	Chars          int            `json:"chars"`
	Summary        string         `json:"summary,omitempty"`
	Answers        []QA           `json:"answers"`
	ReportLocation string         `json:"report_location,omitempty"`
	FailReason     string         `json:"fail_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Error    string `json:"error,omitempty"`
}
