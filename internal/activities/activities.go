package activities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/extract"
	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/reports"
	"github.com/commercebatola-sys/Outil1/internal/storage"
	"github.com/commercebatola-sys/Outil1/internal/util"

	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

type Activities struct {
	cfg       config.Config
	extractor extract.Extractor
	providers *providers.Manager
	audit     storage.LLMAuditLog
	archive   storage.AnalysisArchive
	reports   reports.Store
	log       *zap.Logger
}

// Deps lets tests and the worker inject collaborators. Nil fields fall back
// to no-op implementations.
type Deps struct {
	Extractor extract.Extractor
	Providers *providers.Manager
	Audit     storage.LLMAuditLog
	Archive   storage.AnalysisArchive
	Reports   reports.Store
	Logger    *zap.Logger
}

// New builds activities from configuration. db may be nil when Postgres is
// not configured.
func New(ctx context.Context, cfg config.Config, db *storage.DB, log *zap.Logger) (*Activities, error) {
	ex, err := extract.New(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	rs, err := reports.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d := Deps{Extractor: ex, Providers: pm, Reports: rs, Logger: log}
	if db != nil {
		d.Audit = storage.NewLLMAuditRepo(db)
		d.Archive = storage.NewAnalysisRepo(db)
	}
	return NewWith(cfg, d), nil
}

func NewWith(cfg config.Config, d Deps) *Activities {
	a := &Activities{
		cfg:       cfg,
		extractor: d.Extractor,
		providers: d.Providers,
		audit:     d.Audit,
		archive:   d.Archive,
		reports:   d.Reports,
		log:       d.Logger,
	}
	if a.extractor == nil {
		a.extractor = extract.NewChain(extract.NewNative(), extract.NewDocconv())
	}
	if a.providers == nil {
		a.providers = providers.NewManagerWith()
	}
	if a.audit == nil {
		a.audit = storage.NopAuditLog{}
	}
	if a.archive == nil {
		a.archive = storage.NopArchive{}
	}
	if a.reports == nil {
		a.reports = reports.NopStore{}
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a
}

func (a *Activities) Close() error {
	return a.providers.Close()
}

func (a *Activities) UpdateAnalysisActivity(ctx context.Context, in UpdateAnalysisInput) error {
	if err := a.archive.Upsert(ctx, in.Analysis); err != nil {
		return fmt.Errorf("update analysis %s: %w", in.Analysis.AnalysisID, err)
	}
	return nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("read pdf: %w", err)
	}
	maxChars := in.MaxChars
	if maxChars <= 0 {
		maxChars = a.cfg.MaxTextChars
	}
	res, err := extract.Extract(ctx, a.extractor, data, maxChars)
	if err != nil {
		if errors.Is(err, util.ErrNoExtractableText) || errors.Is(err, util.ErrNotPDF) {
			return ExtractTextOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "DocumentError", err)
		}
		return ExtractTextOutput{}, fmt.Errorf("extract pdf text: %w", err)
	}
	return ExtractTextOutput{
		Text:      res.Text,
		Pages:     res.Pages,
		Chars:     res.Chars,
		Truncated: res.Truncated,
		Extractor: res.Extractor,
		SHA256:    util.SHA256Hex(data),
	}, nil
}

func (a *Activities) LLMChatActivity(ctx context.Context, in LLMChatInput) (LLMChatOutput, error) {
	if in.ProviderRef != "" {
		if idx := a.providers.FindLLMProviderIndex(in.ProviderRef); idx >= 0 {
			in.ProviderIndex = idx
		} else {
			return LLMChatOutput{}, fmt.Errorf("llm provider ref not configured in worker: %s", in.ProviderRef)
		}
	}
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)

	temp, maxTokens := a.cfg.AnswerTemperature, a.cfg.AnswerMaxTokens
	if strings.Contains(in.Operation, "summary") {
		temp, maxTokens = a.cfg.SummaryTemperature, a.cfg.SummaryMaxTokens
	}
	start := time.Now()
	resp, info, err := provider.Chat(ctx, providers.ChatRequest{
		Operation:   in.Operation,
		Model:       in.Model,
		System:      in.System,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: in.User}},
		Temperature: providers.Temperature(temp),
		MaxTokens:   maxTokens,
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		a.log.Warn("llm.chat.failed",
			zap.String("analysis_id", in.AnalysisID),
			zap.String("op", in.Operation),
			zap.String("provider", ref.Raw),
			zap.Int64("elapsed_ms", elapsed),
			zap.Error(err),
		)
		return LLMChatOutput{}, fmt.Errorf("llm chat via %s failed: %w", ref.Raw, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return LLMChatOutput{}, fmt.Errorf("llm chat via %s: %w", ref.Raw, providers.ErrEmptyResponse)
	}
	a.log.Info("llm.chat.done",
		zap.String("analysis_id", in.AnalysisID),
		zap.String("op", in.Operation),
		zap.String("provider", ref.Raw),
		zap.String("model", info.Model),
		zap.Int64("elapsed_ms", elapsed),
	)
	return LLMChatOutput{
		Text:             resp.Text,
		ProviderName:     info.Name,
		Model:            info.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		LatencyMs:        elapsed,
	}, nil
}

// WriteReportActivity stores the markdown report and, when the summary holds
// a key-figures table, its spreadsheet export.
func (a *Activities) WriteReportActivity(ctx context.Context, in WriteReportInput) (WriteReportOutput, error) {
	name := reports.SummaryFilename(time.Now())
	key, err := reports.AnalysisKey(in.AnalysisID, name)
	if err != nil {
		return WriteReportOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidKey", err)
	}
	loc, err := a.reports.Put(ctx, key, []byte(RenderReport(in)), reports.ContentTypeMarkdown)
	if err != nil {
		return WriteReportOutput{}, fmt.Errorf("write report: %w", err)
	}
	out := WriteReportOutput{Location: loc}

	figures := reports.ParseKeyFigures(in.Summary)
	if len(figures) == 0 {
		return out, nil
	}
	xlsx, err := reports.KeyFiguresXLSX(figures, reports.ReportMeta{
		Filename: in.Filename,
		Pages:    in.Pages,
		Chars:    in.Chars,
		Provider: in.Provider,
		Model:    in.Model,
	})
	if err != nil {
		return WriteReportOutput{}, fmt.Errorf("build key figures workbook: %w", err)
	}
	xkey, _ := reports.AnalysisKey(in.AnalysisID, strings.TrimSuffix(name, ".md")+".xlsx")
	if out.XLSXLocation, err = a.reports.Put(ctx, xkey, xlsx, reports.ContentTypeXLSX); err != nil {
		return WriteReportOutput{}, fmt.Errorf("write key figures workbook: %w", err)
	}
	return out, nil
}

// RenderReport lays out the summary followed by the answered questions.
func RenderReport(in WriteReportInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Résumé financier : %s\n\n", in.Filename)
	fmt.Fprintf(&b, "_Pages analysées : %d | Caractères : %d | Modèle : %s_\n\n", in.Pages, in.Chars, in.Model)
	b.WriteString(strings.TrimSpace(in.Summary))
	b.WriteString("\n")
	if len(in.Answers) > 0 {
		b.WriteString("\n## Questions\n")
		for _, qa := range in.Answers {
			fmt.Fprintf(&b, "\n### %s\n\n", qa.Question)
			if qa.Error != "" {
				b.WriteString("non précisé (" + qa.Error + ")\n")
				continue
			}
			b.WriteString(strings.TrimSpace(qa.Answer) + "\n")
		}
	}
	return b.String()
}

func (a *Activities) LogLLMCallActivity(ctx context.Context, in LogLLMCallInput) error {
	return a.audit.Insert(ctx, storage.LLMCallRecord{
		CallID:           in.CallID,
		Operation:        in.Operation,
		AnalysisID:       in.AnalysisID,
		ProviderName:     in.ProviderName,
		Model:            in.Model,
		RequestID:        in.RequestID,
		Status:           in.Status,
		ErrorType:        in.ErrorType,
		PromptTokens:     in.PromptTokens,
		CompletionTokens: in.CompletionTokens,
		LatencyMs:        in.LatencyMs,
	})
}
