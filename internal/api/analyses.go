package api

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/models"
	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/util"
	"github.com/commercebatola-sys/Outil1/internal/workflows"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

var errNotPDF = errors.New("only pdf files are accepted")

// handleStartAnalysis stores the uploaded PDF under DataInRoot and starts the
// analysis workflow. Form fields: file, provider, model, max_chars,
// summary_words, sector and question (repeatable).
func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.workflows == nil {
		writeErr(w, http.StatusServiceUnavailable, errTemporalDisabled)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxUploadMB())<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeServiceErr(w, uploadErr(err))
		return
	}
	fh, ok := firstFile(r.MultipartForm, "file")
	if !ok {
		writeErr(w, http.StatusBadRequest, errNoFile)
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, errNotPDF)
		return
	}

	analysisID := uuid.NewString()
	dir := filepath.Join(s.cfg.DataInRoot, analysisID)
	if err := util.EnsureDir(dir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	sum, path, err := saveUploadedFile(dir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	input := workflows.DocumentAnalysisInput{
		AnalysisID:      analysisID,
		Path:            path,
		Filename:        filepath.Base(fh.Filename),
		Provider:        strings.TrimSpace(r.FormValue("provider")),
		Model:           strings.TrimSpace(r.FormValue("model")),
		MaxChars:        config.ClampMaxChars(atoiOrZero(r.FormValue("max_chars"))),
		SummaryWords:    config.ClampSummaryWords(atoiOrZero(r.FormValue("summary_words"))),
		Sector:          strings.TrimSpace(r.FormValue("sector")),
		Questions:       formQuestions(r.MultipartForm),
		ProviderRefs:    providerRefs(s.cfg.LLMProviders),
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	}
	if input.MaxChars == 0 {
		input.MaxChars = s.cfg.MaxTextChars
	}
	if input.SummaryWords == 0 {
		input.SummaryWords = s.cfg.SummaryWords
	}

	if err := s.archive.Upsert(r.Context(), models.Analysis{
		AnalysisID: analysisID,
		Source:     "workflow",
		Filename:   input.Filename,
		SHA256:     sum,
		Status:     models.AnalysisQueued,
		Provider:   input.Provider,
		Model:      input.Model,
	}); err != nil {
		s.log.Warn("analysis.archive.failed", zap.String("analysis_id", analysisID), zap.Error(err))
	}

	we, err := s.workflows.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       workflows.WorkflowID(analysisID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.DocumentAnalysisWorkflow, input)
	if err != nil {
		s.log.Error("analysis.start.failed", zap.String("analysis_id", analysisID), zap.Error(err))
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	s.log.Info("analysis.started",
		zap.String("analysis_id", analysisID),
		zap.String("workflow_id", we.GetID()),
		zap.Int("questions", len(input.Questions)),
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"analysis_id": analysisID,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
		"sha256":      sum,
	})
}

// handleGetAnalysis reports live progress while the workflow can be queried
// and falls back to the archived row otherwise.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysisID := chi.URLParam(r, "analysisID")
	if s.workflows != nil {
		val, err := s.workflows.QueryWorkflow(r.Context(), workflows.WorkflowID(analysisID), "", workflows.QueryGetAnalysisProgress)
		if err == nil {
			var progress workflows.AnalysisProgress
			if err := val.Get(&progress); err == nil {
				writeJSON(w, http.StatusOK, map[string]any{"analysis_id": analysisID, "progress": progress})
				return
			}
		} else {
			s.log.Debug("analysis.query.failed", zap.String("analysis_id", analysisID), zap.Error(err))
		}
	}
	a, err := s.archive.Get(r.Context(), analysisID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis_id": analysisID, "analysis": a})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := atoiOrZero(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := s.archive.ListRecent(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []models.Analysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": list})
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (sum, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	sum = fmt.Sprintf("%x", h.Sum(nil))
	finalPath := util.SafeJoin(dstDir, fh.Filename)
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}
	return sum, finalPath, nil
}

func firstFile(form *multipart.Form, field string) (*multipart.FileHeader, bool) {
	if form == nil {
		return nil, false
	}
	if v := form.File[field]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range form.File {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func formQuestions(form *multipart.Form) []string {
	if form == nil {
		return nil
	}
	var out []string
	for _, raw := range form.Value["question"] {
		for _, q := range strings.Split(raw, "\n") {
			if q = strings.TrimSpace(q); q != "" {
				out = append(out, q)
			}
		}
	}
	return out
}

func providerRefs(raw string) []string {
	refs := providers.ParseProviderList(raw)
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Raw)
	}
	return out
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
