package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/analysis"
	"github.com/commercebatola-sys/Outil1/internal/auth"
	"github.com/commercebatola-sys/Outil1/internal/extract"
	"github.com/commercebatola-sys/Outil1/internal/reports"
	"github.com/commercebatola-sys/Outil1/internal/session"
	"github.com/commercebatola-sys/Outil1/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const multipartMemory = 32 << 20

type sessionResponse struct {
	session.Session
	Preview string         `json:"preview,omitempty"`
	Metrics sessionMetrics `json:"metrics"`
}

type sessionMetrics struct {
	Pages int    `json:"pages"`
	Chars int    `json:"chars"`
	Model string `json:"model,omitempty"`
}

// sessionID prefers the id verified by the token middleware.
func sessionID(r *http.Request) string {
	if id, ok := auth.SessionIDFrom(r.Context()); ok {
		return id
	}
	return chi.URLParam(r, "sessionID")
}

// decodeOptional decodes a JSON body into v. An empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var settings session.Settings
	if err := decodeOptional(r, &settings); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, err := s.svc.CreateSession(settings)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	token, exp, err := s.issuer.Issue(sess.ID)
	if err != nil {
		_ = s.svc.DeleteSession(sess.ID)
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
		"settings":   sess.Settings,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Session(sessionID(r))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	out := sessionResponse{Session: sess}
	if sess.Document != nil {
		out.Preview = util.Preview(sess.Document.Text, s.cfg.PreviewChars)
		out.Metrics = sessionMetrics{
			Pages: extract.CountPageMarkers(sess.Document.Text),
			Chars: sess.Document.Chars,
			Model: sess.SummaryModel,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(sessionID(r)); err != nil {
		writeServiceErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings session.Settings
	if err := decodeOptional(r, &settings); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sess, err := s.svc.UpdateSettings(sessionID(r), settings)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": sess.Settings})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxUploadMB())<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeServiceErr(w, uploadErr(err))
		return
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, errNoFile)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeServiceErr(w, uploadErr(err))
		return
	}
	res, err := s.svc.Upload(r.Context(), sessionID(r), fh.Filename, data)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document": res.Document,
		"preview":  res.Preview,
		"warning":  res.Warning,
		"metrics": sessionMetrics{
			Pages: extract.CountPageMarkers(res.Document.Text),
			Chars: res.Document.Chars,
		},
	})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var opts analysis.SummaryOptions
	if err := decodeOptional(r, &opts); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	res, err := s.svc.Summarize(r.Context(), sessionID(r), opts)
	if err != nil {
		s.log.Warn("summary.failed", zap.String("session_id", sessionID(r)), zap.Error(err))
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummaryMarkdown(w http.ResponseWriter, r *http.Request) {
	name, body, err := s.svc.SummaryMarkdown(sessionID(r))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeAttachment(w, name, reports.ContentTypeMarkdown, body)
}

func (s *Server) handleSummaryXLSX(w http.ResponseWriter, r *http.Request) {
	name, body, err := s.svc.SummaryXLSX(sessionID(r))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeAttachment(w, name, reports.ContentTypeXLSX, body)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errInvalidJSON, err))
		return
	}
	turn, err := s.svc.Ask(r.Context(), sessionID(r), req.Question)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turn": turn})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Session(sessionID(r))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": sess.History})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.ClearHistory(r.Context(), sessionID(r))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": sess.History})
}

func writeAttachment(w http.ResponseWriter, name, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) maxUploadMB() int {
	if s.cfg.MaxUploadMB > 0 {
		return s.cfg.MaxUploadMB
	}
	return 50
}

func uploadErr(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	return fmt.Errorf("%w: %v", errNoFile, err)
}
