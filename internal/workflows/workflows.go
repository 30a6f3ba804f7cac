package workflows

import (
	"fmt"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/activities"
	"github.com/commercebatola-sys/Outil1/internal/models"
	"github.com/commercebatola-sys/Outil1/internal/prompts"
	"github.com/commercebatola-sys/Outil1/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetAnalysisProgress = "GetAnalysisProgress"

const (
	StepInit      = "init"
	StepExtract   = "extract"
	StepSummary   = "summary"
	StepQuestions = "questions"
	StepReport    = "report"
	StepDone      = "done"
)

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

// DocumentAnalysisWorkflow extracts a stored PDF, summarizes it, answers the
// preset questions and writes the report. Document and provider failures end
// the run as "failed" without failing the workflow itself.
func DocumentAnalysisWorkflow(ctx workflow.Context, input DocumentAnalysisInput) (string, error) {
	progress := AnalysisProgress{
		AnalysisID:  input.AnalysisID,
		Status:      string(models.AnalysisRunning),
		CurrentStep: StepInit,
		Steps:       map[string]string{},
		RetryCounts: map[string]int{},
		Questions:   len(input.Questions),
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetAnalysisProgress, func() (AnalysisProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	row := models.Analysis{
		AnalysisID: input.AnalysisID,
		Source:     "workflow",
		Filename:   input.Filename,
		Status:     models.AnalysisRunning,
		Provider:   input.Provider,
		Model:      input.Model,
	}
	update := func() {
		_ = workflow.ExecuteActivity(ctx, "UpdateAnalysisActivity", activities.UpdateAnalysisInput{Analysis: row}).Get(ctx, nil)
	}
	fail := func(step string, err error) (string, error) {
		progress.Steps[step] = "failed"
		progress.Status = string(models.AnalysisFailed)
		progress.FailReason = err.Error()
		row.Status = models.AnalysisFailed
		row.FailReason = err.Error()
		update()
		return string(models.AnalysisFailed), nil
	}
	update()

	progress.CurrentStep = StepExtract
	var text activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{Path: input.Path, MaxChars: input.MaxChars}).Get(ctx, &text); err != nil {
		if isNoTextError(err) {
			return fail(StepExtract, err)
		}
		progress.Steps[StepExtract] = "failed"
		row.Status = models.AnalysisFailed
		row.FailReason = err.Error()
		update()
		return "", err
	}
	progress.Steps[StepExtract] = "done"
	progress.Pages, progress.Chars = text.Pages, text.Chars
	row.Pages, row.Chars, row.SHA256 = text.Pages, text.Chars, text.SHA256

	refs := input.ProviderRefs
	if input.Provider != "" {
		refs = []string{input.Provider}
	}
	if len(refs) == 0 {
		refs = []string{"mock"}
	}
	state := newProviderState()
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	sector, err := prompts.ParseSector(input.Sector)
	if err != nil {
		sector = prompts.SectorGeneral
	}

	progress.CurrentStep = StepSummary
	summary, _, err := callLLMWithFailover(ctx, &state, refs, cooldown, activities.LLMChatInput{
		Operation:  "summary",
		AnalysisID: input.AnalysisID,
		Model:      input.Model,
		System:     prompts.SummarySystemPrompt(input.SummaryWords, sector),
		User:       text.Text,
	}, progress.RetryCounts)
	if err != nil {
		return fail(StepSummary, err)
	}
	progress.Steps[StepSummary] = "done"
	progress.Provider, progress.Model = summary.ProviderName, summary.Model
	row.Summary, row.Provider, row.Model = summary.Text, summary.ProviderName, summary.Model

	progress.CurrentStep = StepQuestions
	answers := make([]models.QA, 0, len(input.Questions))
	for _, q := range input.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out, _, err := callLLMWithFailover(ctx, &state, refs, cooldown, activities.LLMChatInput{
			Operation:  "question",
			AnalysisID: input.AnalysisID,
			Model:      input.Model,
			System:     prompts.QuestionSystemPrompt(),
			User:       prompts.QuestionUserMessage(q, text.Text),
		}, progress.RetryCounts)
		if err != nil {
			answers = append(answers, models.QA{Question: q, Error: err.Error()})
			continue
		}
		answers = append(answers, models.QA{Question: q, Answer: out.Text})
		progress.Answered++
	}
	progress.Steps[StepQuestions] = "done"
	row.Answers = answers

	progress.CurrentStep = StepReport
	var report activities.WriteReportOutput
	if err := workflow.ExecuteActivity(ctx, "WriteReportActivity", activities.WriteReportInput{
		AnalysisID: input.AnalysisID,
		Filename:   input.Filename,
		Summary:    summary.Text,
		Answers:    answers,
		Pages:      text.Pages,
		Chars:      text.Chars,
		Provider:   summary.ProviderName,
		Model:      summary.Model,
	}).Get(ctx, &report); err != nil {
		progress.Steps[StepReport] = "failed"
	} else {
		progress.Steps[StepReport] = "done"
		progress.ReportLocation = report.Location
		row.ReportLocation = report.Location
	}

	progress.CurrentStep = StepDone
	progress.Status = string(models.AnalysisDone)
	row.Status = models.AnalysisDone
	update()
	return string(models.AnalysisDone), nil
}

func callLLMWithFailover(ctx workflow.Context, state *providerState, refs []string, cooldown time.Duration, input activities.LLMChatInput, retryCounts map[string]int) (activities.LLMChatOutput, string, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	providerCount := len(refs)
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderRef = refs[idx]
		requestID := fmt.Sprintf("%s-%s-%d", input.AnalysisID, input.Operation, attempt)
		var out activities.LLMChatOutput
		err := workflow.ExecuteActivity(ctx, "LLMChatActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{
				Operation: input.Operation, AnalysisID: input.AnalysisID, ProviderName: out.ProviderName, Model: out.Model,
				RequestID: requestID, Status: "ok", PromptTokens: out.PromptTokens, CompletionTokens: out.CompletionTokens, LatencyMs: out.LatencyMs,
			}).Get(ctx, nil)
			return out, "", nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogLLMCallActivity", activities.LogLLMCallInput{
			Operation: input.Operation, AnalysisID: input.AnalysisID, ProviderName: refs[idx], Model: input.Model,
			RequestID: requestID, Status: "failed", ErrorType: string(errType),
		}).Get(ctx, nil)
		key := fmt.Sprintf("llm-%s-%d", input.Operation, idx)
		retryCounts[key]++
		state.retries[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				_ = workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		case providers.ErrorContext:
			return activities.LLMChatOutput{}, string(providers.ErrorContext), err
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all llm providers exhausted")
	}
	return activities.LLMChatOutput{}, string(providers.ClassifyError(lastErr)), lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func isNoTextError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "no extractable text") || strings.Contains(e, "not a pdf")
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

// WorkflowID names the workflow run of an analysis.
func WorkflowID(analysisID string) string {
	return "analysis-" + sanitizeID(analysisID)
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}
