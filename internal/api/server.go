package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/analysis"
	"github.com/commercebatola-sys/Outil1/internal/auth"
	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.uber.org/zap"
)

// WorkflowClient is the part of the Temporal client the API uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Deps wires the server. Workflows may be nil when Temporal is disabled;
// Archive falls back to a no-op.
type Deps struct {
	Service   *analysis.Service
	Issuer    *auth.Issuer
	Archive   storage.AnalysisArchive
	Workflows WorkflowClient
	Logger    *zap.Logger
}

type Server struct {
	cfg       config.Config
	svc       *analysis.Service
	issuer    *auth.Issuer
	archive   storage.AnalysisArchive
	workflows WorkflowClient
	log       *zap.Logger
	upgrader  websocket.Upgrader
}

func NewServer(cfg config.Config, d Deps) *Server {
	s := &Server{
		cfg:       cfg,
		svc:       d.Service,
		issuer:    d.Issuer,
		archive:   d.Archive,
		workflows: d.Workflows,
		log:       d.Logger,
	}
	if s.svc == nil {
		s.svc = analysis.NewService(cfg, analysis.Deps{Logger: d.Logger})
	}
	if s.issuer == nil {
		s.issuer, _ = auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.AuthDisabled)
	}
	if s.archive == nil {
		s.archive = storage.NopArchive{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.allowOrigin,
	}
	return s
}

func (s *Server) Routes() http.Handler {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})

	r.Get("/healthz", s.handleHealthz)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Get("/status", s.handleStatus)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/analyses", s.handleListAnalyses)
		r.Post("/analyses", s.handleStartAnalysis)
		r.Get("/analyses/{analysisID}", s.handleGetAnalysis)
	})

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(s.issuer.Middleware(sessionID, s.deny))
		// The chat socket outlives the request timeout.
		r.Get("/ws", s.handleChatWS)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Patch("/settings", s.handleUpdateSettings)
			r.Post("/document", s.handleUpload)
			r.Post("/summary", s.handleSummarize)
			r.Get("/summary.md", s.handleSummaryMarkdown)
			r.Get("/summary.xlsx", s.handleSummaryXLSX)
			r.Post("/questions", s.handleAsk)
			r.Get("/history", s.handleHistory)
			r.Delete("/history", s.handleClearHistory)
		})
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Status(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": st.Providers,
		"sessions":  st.Sessions,
		"extractor": st.Extractor,
		"limits":    st.Limits,
		"temporal":  s.workflows != nil,
		"auth":      !s.issuer.Disabled(),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("http.request",
				zap.String("req_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.CORSOrigins) == 0 || slices.Contains(s.cfg.CORSOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.CORSOrigins, origin)
}
