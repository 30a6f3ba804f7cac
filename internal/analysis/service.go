package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/extract"
	"github.com/commercebatola-sys/Outil1/internal/models"
	"github.com/commercebatola-sys/Outil1/internal/prompts"
	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/reports"
	"github.com/commercebatola-sys/Outil1/internal/session"
	"github.com/commercebatola-sys/Outil1/internal/storage"
	"github.com/commercebatola-sys/Outil1/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps are the collaborators of a Service. Nil audit, archive and report
// backends are replaced by no-op implementations.
type Deps struct {
	Extractor extract.Extractor
	Providers *providers.Manager
	Sessions  *session.Store
	Audit     storage.LLMAuditLog
	Archive   storage.AnalysisArchive
	Reports   reports.Store
	Logger    *zap.Logger
}

type Service struct {
	cfg       config.Config
	extractor extract.Extractor
	providers *providers.Manager
	sessions  *session.Store
	audit     storage.LLMAuditLog
	archive   storage.AnalysisArchive
	reports   reports.Store
	log       *zap.Logger
	now       func() time.Time
}

func NewService(cfg config.Config, d Deps) *Service {
	s := &Service{
		cfg:       cfg,
		extractor: d.Extractor,
		providers: d.Providers,
		sessions:  d.Sessions,
		audit:     d.Audit,
		archive:   d.Archive,
		reports:   d.Reports,
		log:       d.Logger,
		now:       time.Now,
	}
	if s.extractor == nil {
		s.extractor = extract.NewChain(extract.NewNative(), extract.NewDocconv())
	}
	if s.providers == nil {
		s.providers = providers.NewManagerWith()
	}
	if s.sessions == nil {
		s.sessions = session.NewStore(cfg.SessionTTL)
	}
	if s.audit == nil {
		s.audit = storage.NopAuditLog{}
	}
	if s.archive == nil {
		s.archive = storage.NopArchive{}
	}
	if s.reports == nil {
		s.reports = reports.NopStore{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *Service) Sessions() *session.Store { return s.sessions }

type UploadResult struct {
	Document session.Document `json:"document"`
	Preview  string           `json:"preview"`
	Warning  string           `json:"warning,omitempty"`
}

type SummaryOptions struct {
	Provider     string   `json:"provider,omitempty"`
	Model        string   `json:"model,omitempty"`
	SummaryWords int      `json:"summary_words,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Sector       string   `json:"sector,omitempty"`
}

type SummaryResult struct {
	Summary        string              `json:"summary"`
	Provider       string              `json:"provider"`
	Model          string              `json:"model"`
	Filename       string              `json:"filename"`
	ReportLocation string              `json:"report_location,omitempty"`
	KeyFigures     []reports.KeyFigure `json:"key_figures"`
	Pages          int                 `json:"pages"`
	Chars          int                 `json:"chars"`
}

// CreateSession opens a session after bounding the requested settings.
func (s *Service) CreateSession(settings session.Settings) (session.Session, error) {
	clean, err := s.normalizeSettings(settings)
	if err != nil {
		return session.Session{}, err
	}
	sess := s.sessions.Create(clean)
	s.log.Info("session.created", zap.String("session_id", sess.ID), zap.String("provider", clean.Provider))
	return sess, nil
}

func (s *Service) UpdateSettings(sessionID string, settings session.Settings) (session.Session, error) {
	clean, err := s.normalizeSettings(settings)
	if err != nil {
		return session.Session{}, err
	}
	sess, err := s.sessions.UpdateSettings(sessionID, clean)
	if err != nil {
		return session.Session{}, sessionErr("settings", err)
	}
	return sess, nil
}

func (s *Service) normalizeSettings(in session.Settings) (session.Settings, error) {
	out := in
	out.Provider = strings.TrimSpace(in.Provider)
	out.Model = strings.TrimSpace(in.Model)
	if out.Provider != "" && s.providers.FindLLMProviderIndex(out.Provider) < 0 {
		return session.Settings{}, invalid("settings", msgNoProvider+out.Provider, nil)
	}
	if _, err := prompts.ParseSector(in.Sector); err != nil {
		return session.Settings{}, invalid("settings", "⚠️ Secteur inconnu : "+in.Sector, err)
	}
	out.MaxChars = config.ClampMaxChars(in.MaxChars)
	out.SummaryWords = config.ClampSummaryWords(in.SummaryWords)
	if in.Temperature != nil {
		t := config.ClampTemperature(*in.Temperature)
		out.Temperature = &t
	}
	return out, nil
}

func (s *Service) Session(sessionID string) (session.Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return session.Session{}, sessionErr("session", err)
	}
	return sess, nil
}

func (s *Service) DeleteSession(sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return sessionErr("session", err)
	}
	s.log.Info("session.deleted", zap.String("session_id", sessionID))
	return nil
}

// Upload extracts the text of a PDF and makes it the session document. The
// previous summary and chat history are discarded.
func (s *Service) Upload(ctx context.Context, sessionID, filename string, data []byte) (UploadResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return UploadResult{}, sessionErr("upload", err)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return UploadResult{}, invalid("upload", msgNotPDF, nil)
	}
	maxChars := s.cfg.MaxTextChars
	if sess.Settings.MaxChars > 0 {
		maxChars = sess.Settings.MaxChars
	}

	start := s.now()
	res, err := extract.Extract(ctx, s.extractor, data, maxChars)
	if err != nil {
		s.log.Warn("document.extract.failed",
			zap.String("session_id", sessionID),
			zap.String("filename", filename),
			zap.String("extractor", s.extractor.Name()),
			zap.Error(err),
		)
		return UploadResult{}, documentErr(err)
	}
	doc := session.Document{
		Filename:   filepath.Base(filename),
		SizeBytes:  int64(len(data)),
		SHA256:     util.SHA256Hex(data),
		Text:       res.Text,
		Pages:      res.Pages,
		Chars:      res.Chars,
		Truncated:  res.Truncated,
		Extractor:  res.Extractor,
		UploadedAt: s.now().UTC(),
	}
	if _, err := s.sessions.SetDocument(sessionID, doc); err != nil {
		return UploadResult{}, sessionErr("upload", err)
	}
	s.log.Info("document.extracted",
		zap.String("session_id", sessionID),
		zap.String("filename", doc.Filename),
		zap.Int("pages", doc.Pages),
		zap.Int("chars", doc.Chars),
		zap.Bool("truncated", doc.Truncated),
		zap.String("extractor", doc.Extractor),
		zap.Int64("elapsed_ms", s.now().Sub(start).Milliseconds()),
	)
	out := UploadResult{Document: doc, Preview: util.Preview(doc.Text, s.cfg.PreviewChars)}
	if doc.Truncated {
		out.Warning = fmt.Sprintf(msgTruncatedFmt, maxChars)
	}
	return out, nil
}

// Summarize asks the session provider for the financial summary of the
// current document. The summary is stored on the session, written as a
// markdown report and archived.
func (s *Service) Summarize(ctx context.Context, sessionID string, opts SummaryOptions) (SummaryResult, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return SummaryResult{}, sessionErr("summary", err)
	}
	if sess.Document == nil {
		return SummaryResult{}, invalid("summary", msgNoDocument, nil)
	}
	words := firstPositive(config.ClampSummaryWords(opts.SummaryWords), sess.Settings.SummaryWords, s.cfg.SummaryWords, prompts.DefaultSummaryWords)
	sectorRaw := opts.Sector
	if sectorRaw == "" {
		sectorRaw = sess.Settings.Sector
	}
	sector, err := prompts.ParseSector(sectorRaw)
	if err != nil {
		return SummaryResult{}, invalid("summary", "⚠️ Secteur inconnu : "+sectorRaw, err)
	}
	provider := strings.TrimSpace(opts.Provider)
	if provider != "" && s.providers.FindLLMProviderIndex(provider) < 0 {
		return SummaryResult{}, invalid("summary", msgNoProvider+provider, nil)
	}
	temp := s.temperature(opts.Temperature, sess.Settings.Temperature, s.cfg.SummaryTemperature)

	resp, info, err := s.chat(ctx, llmCall{
		op:        "summary",
		sessionID: sessionID,
		provider:  firstNonEmpty(provider, sess.Settings.Provider),
		req: providers.ChatRequest{
			Operation:   "summary",
			Model:       firstNonEmpty(opts.Model, sess.Settings.Model),
			System:      prompts.SummarySystemPrompt(words, sector),
			Messages:    []providers.Message{{Role: providers.RoleUser, Content: sess.Document.Text}},
			Temperature: providers.Temperature(temp),
			MaxTokens:   s.cfg.SummaryMaxTokens,
		},
	})
	if err != nil {
		return SummaryResult{}, providerErr("summary", msgSummary, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return SummaryResult{}, &Error{Op: "summary", Kind: KindProvider, Message: msgSummary + providers.ErrEmptyResponse.Error(), Cause: providers.ErrEmptyResponse}
	}
	updated, err := s.sessions.SetSummary(sessionID, sess.DocumentRev, resp.Text, info.Model)
	if err != nil {
		return SummaryResult{}, sessionErr("summary", err)
	}

	out := SummaryResult{
		Summary:    resp.Text,
		Provider:   info.Name,
		Model:      info.Model,
		Filename:   reports.SummaryFilename(updated.SummaryAt),
		KeyFigures: reports.ParseKeyFigures(resp.Text),
		Pages:      sess.Document.Pages,
		Chars:      sess.Document.Chars,
	}
	if key, err := reports.SessionKey(sessionID, out.Filename); err == nil {
		loc, perr := s.reports.Put(ctx, key, []byte(resp.Text), reports.ContentTypeMarkdown)
		if perr != nil {
			s.log.Warn("report.put.failed", zap.String("session_id", sessionID), zap.String("key", key), zap.Error(perr))
		}
		out.ReportLocation = loc
	}
	if err := s.archive.Upsert(context.WithoutCancel(ctx), models.Analysis{
		AnalysisID:     uuid.NewString(),
		Source:         "session",
		SessionID:      sessionID,
		Filename:       sess.Document.Filename,
		SHA256:         sess.Document.SHA256,
		Status:         models.AnalysisDone,
		Provider:       info.Name,
		Model:          info.Model,
		Pages:          sess.Document.Pages,
		Chars:          sess.Document.Chars,
		Summary:        resp.Text,
		ReportLocation: out.ReportLocation,
	}); err != nil {
		s.log.Warn("analysis.archive.failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return out, nil
}

// Ask answers one question about the session document. The exchange is only
// recorded when an answer was produced.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (session.Turn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return session.Turn{}, invalid("question", msgEmptyQ, nil)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return session.Turn{}, sessionErr("question", err)
	}
	if sess.Document == nil {
		return session.Turn{}, invalid("question", msgNoDocument, nil)
	}
	resp, _, err := s.chat(ctx, llmCall{
		op:        "question",
		sessionID: sessionID,
		provider:  sess.Settings.Provider,
		req: providers.ChatRequest{
			Operation:   "question",
			Model:       sess.Settings.Model,
			System:      prompts.QuestionSystemPrompt(),
			Messages:    []providers.Message{{Role: providers.RoleUser, Content: prompts.QuestionUserMessage(question, sess.Document.Text)}},
			Temperature: providers.Temperature(s.temperature(nil, sess.Settings.Temperature, s.cfg.AnswerTemperature)),
			MaxTokens:   s.cfg.AnswerMaxTokens,
		},
	})
	if err != nil {
		return session.Turn{}, providerErr("question", msgAnswer, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return session.Turn{}, &Error{Op: "question", Kind: KindProvider, Message: msgNoAnswer, Cause: providers.ErrEmptyResponse}
	}
	updated, err := s.sessions.AppendExchange(sessionID, sess.DocumentRev, question, resp.Text)
	if err != nil {
		return session.Turn{}, sessionErr("question", err)
	}
	s.log.Debug("question.answered",
		zap.String("session_id", sessionID),
		zap.String("question", util.DisplaySnippet(question, 120)),
		zap.Int("answer_chars", util.RuneCount(resp.Text)),
		zap.Int("turns", len(updated.History)),
	)
	return updated.History[len(updated.History)-1], nil
}

func (s *Service) ClearHistory(ctx context.Context, sessionID string) (session.Session, error) {
	_ = ctx
	sess, err := s.sessions.ClearHistory(sessionID)
	if err != nil {
		return session.Session{}, sessionErr("history", err)
	}
	return sess, nil
}

// SummaryMarkdown returns the stored summary and its download name.
func (s *Service) SummaryMarkdown(sessionID string) (string, []byte, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", nil, sessionErr("export", err)
	}
	if sess.Summary == "" {
		return "", nil, &Error{Op: "export", Kind: KindNotFound, Message: msgNoSummary}
	}
	return reports.SummaryFilename(sess.SummaryAt), []byte(sess.Summary), nil
}

// SummaryXLSX exports the key-figures table of the stored summary.
func (s *Service) SummaryXLSX(sessionID string) (string, []byte, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return "", nil, sessionErr("export", err)
	}
	if sess.Summary == "" || sess.Document == nil {
		return "", nil, &Error{Op: "export", Kind: KindNotFound, Message: msgNoSummary}
	}
	meta := reports.ReportMeta{
		Filename:    sess.Document.Filename,
		Pages:       sess.Document.Pages,
		Chars:       sess.Document.Chars,
		Provider:    sess.Settings.Provider,
		Model:       sess.SummaryModel,
		GeneratedAt: sess.SummaryAt,
	}
	b, err := reports.KeyFiguresXLSX(reports.ParseKeyFigures(sess.Summary), meta)
	if err != nil {
		return "", nil, fmt.Errorf("build key figures workbook: %w", err)
	}
	name := "chiffres_cles_" + sess.SummaryAt.Format("20060102_150405") + ".xlsx"
	return name, b, nil
}

type Limits struct {
	MaxCharsMin     int `json:"max_chars_min"`
	MaxCharsMax     int `json:"max_chars_max"`
	MaxCharsDefault int `json:"max_chars_default"`
	WordsMin        int `json:"summary_words_min"`
	WordsMax        int `json:"summary_words_max"`
	WordsDefault    int `json:"summary_words_default"`
	MaxUploadMB     int `json:"max_upload_mb"`
}

type StatusReport struct {
	Providers []providers.ProviderStatus `json:"providers"`
	Sessions  int                        `json:"sessions"`
	Extractor string                     `json:"extractor"`
	Limits    Limits                     `json:"limits"`
}

// Status checks every configured provider and reports the tunable limits.
func (s *Service) Status(ctx context.Context) StatusReport {
	return StatusReport{
		Providers: s.providers.CheckAll(ctx, 10*time.Second),
		Sessions:  s.sessions.Len(),
		Extractor: s.extractor.Name(),
		Limits: Limits{
			MaxCharsMin:     config.TextCharsMin,
			MaxCharsMax:     config.TextCharsMax,
			MaxCharsDefault: s.cfg.MaxTextChars,
			WordsMin:        config.SummaryWordsMin,
			WordsMax:        config.SummaryWordsMax,
			WordsDefault:    s.cfg.SummaryWords,
			MaxUploadMB:     s.cfg.MaxUploadMB,
		},
	}
}

func (s *Service) temperature(override, session *float64, fallback float64) float64 {
	switch {
	case override != nil:
		return config.ClampTemperature(*override)
	case session != nil:
		return config.ClampTemperature(*session)
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
