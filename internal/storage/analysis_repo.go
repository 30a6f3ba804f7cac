package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/commercebatola-sys/Outil1/internal/models"

	"github.com/jackc/pgx/v5"
)

var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisArchive persists async analyses and archived session summaries.
type AnalysisArchive interface {
	Upsert(ctx context.Context, a models.Analysis) error
	Get(ctx context.Context, analysisID string) (models.Analysis, error)
	ListRecent(ctx context.Context, limit int) ([]models.Analysis, error)
}

type AnalysisRepo struct {
	db *DB
}

func NewAnalysisRepo(db *DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

const analysisColumns = `analysis_id, source, COALESCE(session_id,''), filename, COALESCE(sha256,''), status,
       COALESCE(provider,''), COALESCE(model,''), pages, chars, COALESCE(summary,''), answers,
       COALESCE(report_location,''), COALESCE(fail_reason,''), created_at, updated_at`

func (r *AnalysisRepo) Upsert(ctx context.Context, a models.Analysis) error {
	answers := a.Answers
	if answers == nil {
		answers = []models.QA{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	source := a.Source
	if source == "" {
		source = "workflow"
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO analyses (analysis_id, source, session_id, filename, sha256, status, provider, model, pages, chars,
                      summary, answers, report_location, fail_reason)
VALUES ($1, $2, NULLIF($3,''), $4, NULLIF($5,''), $6, NULLIF($7,''), NULLIF($8,''), $9, $10,
        NULLIF($11,''), $12::jsonb, NULLIF($13,''), NULLIF($14,''))
ON CONFLICT (analysis_id)
DO UPDATE SET
  status = EXCLUDED.status,
  filename = CASE WHEN EXCLUDED.filename = '' THEN analyses.filename ELSE EXCLUDED.filename END,
  sha256 = COALESCE(EXCLUDED.sha256, analyses.sha256),
  provider = COALESCE(EXCLUDED.provider, analyses.provider),
  model = COALESCE(EXCLUDED.model, analyses.model),
  pages = GREATEST(EXCLUDED.pages, analyses.pages),
  chars = GREATEST(EXCLUDED.chars, analyses.chars),
  summary = COALESCE(EXCLUDED.summary, analyses.summary),
  answers = CASE WHEN jsonb_array_length(EXCLUDED.answers) > 0 THEN EXCLUDED.answers ELSE analyses.answers END,
  report_location = COALESCE(EXCLUDED.report_location, analyses.report_location),
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		a.AnalysisID, source, a.SessionID, a.Filename, a.SHA256, string(a.Status), a.Provider, a.Model, a.Pages, a.Chars,
		a.Summary, string(raw), a.ReportLocation, a.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepo) Get(ctx context.Context, analysisID string) (models.Analysis, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE analysis_id=$1`, analysisID)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Analysis{}, ErrAnalysisNotFound
	}
	if err != nil {
		return models.Analysis{}, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

func (r *AnalysisRepo) ListRecent(ctx context.Context, limit int) ([]models.Analysis, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+analysisColumns+` FROM analyses ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()
	out := make([]models.Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

func scanAnalysis(row pgx.Row) (models.Analysis, error) {
	var (
		a      models.Analysis
		status string
		raw    []byte
	)
	if err := row.Scan(&a.AnalysisID, &a.Source, &a.SessionID, &a.Filename, &a.SHA256, &status,
		&a.Provider, &a.Model, &a.Pages, &a.Chars, &a.Summary, &raw,
		&a.ReportLocation, &a.FailReason, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return models.Analysis{}, err
	}
	a.Status = models.AnalysisStatus(status)
	a.Answers = []models.QA{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a.Answers); err != nil {
			return models.Analysis{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	return a, nil
}
