package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.UpdateAnalysisActivity)
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.LLMChatActivity)
	w.RegisterActivity(a.WriteReportActivity)
	w.RegisterActivity(a.LogLLMCallActivity)
}
