package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/extract"
	"github.com/commercebatola-sys/Outil1/internal/extract/pdftest"
	"github.com/commercebatola-sys/Outil1/internal/models"
	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/reports"
	"github.com/commercebatola-sys/Outil1/internal/storage"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type auditSpy struct{ recs []storage.LLMCallRecord }

func (a *auditSpy) Insert(_ context.Context, rec storage.LLMCallRecord) error {
	a.recs = append(a.recs, rec)
	return nil
}

type archiveSpy struct {
	storage.NopArchive
	rows []models.Analysis
	err  error
}

func (a *archiveSpy) Upsert(_ context.Context, row models.Analysis) error {
	a.rows = append(a.rows, row)
	return a.err
}

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rapport.pdf")
	require.NoError(t, os.WriteFile(p, pdftest.Build(pages...), 0o644))
	return p
}

func testCfg() config.Config {
	return config.Config{
		MaxTextChars:       120000,
		SummaryTemperature: 0.3,
		AnswerTemperature:  0.1,
		SummaryMaxTokens:   2000,
		AnswerMaxTokens:    500,
	}
}

func TestExtractTextActivity(t *testing.T) {
	a := NewWith(testCfg(), Deps{Extractor: extract.NewNative()})
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivity(a.ExtractTextActivity)

	val, err := env.ExecuteActivity(a.ExtractTextActivity, ExtractTextInput{Path: writePDF(t, "Revenue", "Debt")})
	require.NoError(t, err)
	var out ExtractTextOutput
	require.NoError(t, val.Get(&out))
	require.Equal(t, 2, out.Pages)
	require.Equal(t, 2, extract.CountPageMarkers(out.Text))
	require.Len(t, out.SHA256, 64)
	require.Equal(t, "native", out.Extractor)
}

func TestExtractTextActivityNotPDFIsNonRetryable(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(p, []byte("plain text"), 0o644))
	a := NewWith(testCfg(), Deps{})
	_, err := a.ExtractTextActivity(context.Background(), ExtractTextInput{Path: p})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.True(t, appErr.NonRetryable())
}

func TestLLMChatActivityUsesOperationDefaults(t *testing.T) {
	var seen providers.ChatRequest
	stub := chatFunc(func(req providers.ChatRequest) (providers.ChatResponse, error) {
		seen = req
		return providers.ChatResponse{Text: "résumé"}, nil
	})
	pm := providers.NewManagerWith(
		providers.NamedLLMProvider{Ref: providers.ProviderRef{Raw: "mock", Name: "mock"}, Provider: providers.NewMockProvider()},
		providers.NamedLLMProvider{Ref: providers.ProviderRef{Raw: "stub", Name: "stub"}, Provider: stub},
	)
	a := NewWith(testCfg(), Deps{Providers: pm})

	out, err := a.LLMChatActivity(context.Background(), LLMChatInput{Operation: "summary", ProviderRef: "stub", System: "sys", User: "txt"})
	require.NoError(t, err)
	require.Equal(t, "résumé", out.Text)
	require.Equal(t, 2000, seen.MaxTokens)
	require.InDelta(t, 0.3, *seen.Temperature, 1e-6)

	_, err = a.LLMChatActivity(context.Background(), LLMChatInput{Operation: "question", ProviderIndex: 1, User: "q"})
	require.NoError(t, err)
	require.Equal(t, 500, seen.MaxTokens)

	_, err = a.LLMChatActivity(context.Background(), LLMChatInput{ProviderRef: "gemini"})
	require.ErrorContains(t, err, "not configured in worker")
}

func TestLLMChatActivityEmptyAnswer(t *testing.T) {
	stub := chatFunc(func(providers.ChatRequest) (providers.ChatResponse, error) {
		return providers.ChatResponse{Text: " "}, nil
	})
	pm := providers.NewManagerWith(providers.NamedLLMProvider{Ref: providers.ProviderRef{Raw: "stub", Name: "stub"}, Provider: stub})
	_, err := NewWith(testCfg(), Deps{Providers: pm}).LLMChatActivity(context.Background(), LLMChatInput{Operation: "question"})
	require.ErrorIs(t, err, providers.ErrEmptyResponse)
}

func TestWriteReportActivity(t *testing.T) {
	root := t.TempDir()
	a := NewWith(testCfg(), Deps{Reports: reports.NewLocalStore(root)})
	out, err := a.WriteReportActivity(context.Background(), WriteReportInput{
		AnalysisID: "a1",
		Filename:   "rapport.pdf",
		Summary:    "| Indicateur | Valeur | Évolution/Contexte | Période | Page |\n|---|---|---|---|---|\n| CA | 10 | | 2023 | 1 |",
		Answers:    []models.QA{{Question: "Dette ?", Answer: "5 M€"}, {Question: "Marge ?", Error: "timeout"}},
		Pages:      3,
		Model:      "mistral",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.Location, filepath.Join(root, "analyses", "a1")))
	require.True(t, strings.HasSuffix(out.XLSXLocation, ".xlsx"))

	body, err := os.ReadFile(out.Location)
	require.NoError(t, err)
	require.Contains(t, string(body), "### Dette ?\n\n5 M€")
	require.Contains(t, string(body), "non précisé (timeout)")
}

func TestRenderReportWithoutQuestions(t *testing.T) {
	md := RenderReport(WriteReportInput{Filename: "r.pdf", Summary: "  texte  ", Pages: 1, Chars: 5, Model: "m"})
	require.Equal(t, "# Résumé financier : r.pdf\n\n_Pages analysées : 1 | Caractères : 5 | Modèle : m_\n\ntexte\n", md)
}

func TestUpdateAndLogActivities(t *testing.T) {
	audit := &auditSpy{}
	archive := &archiveSpy{}
	a := NewWith(testCfg(), Deps{Audit: audit, Archive: archive})

	require.NoError(t, a.UpdateAnalysisActivity(context.Background(), UpdateAnalysisInput{Analysis: models.Analysis{AnalysisID: "a1", Status: models.AnalysisRunning}}))
	require.Equal(t, models.AnalysisRunning, archive.rows[0].Status)

	archive.err = errors.New("db down")
	require.ErrorContains(t, a.UpdateAnalysisActivity(context.Background(), UpdateAnalysisInput{Analysis: models.Analysis{AnalysisID: "a1"}}), "update analysis a1")

	require.NoError(t, a.LogLLMCallActivity(context.Background(), LogLLMCallInput{Operation: "summary", AnalysisID: "a1", Status: "ok", LatencyMs: 12}))
	require.Equal(t, int64(12), audit.recs[0].LatencyMs)
	require.Equal(t, "a1", audit.recs[0].AnalysisID)
}

type chatFunc func(providers.ChatRequest) (providers.ChatResponse, error)

func (f chatFunc) Chat(_ context.Context, req providers.ChatRequest) (providers.ChatResponse, providers.ProviderInfo, error) {
	resp, err := f(req)
	return resp, providers.ProviderInfo{Name: "stub", Model: "stub-1"}, err
}
