package storage

import (
	"context"

	"github.com/commercebatola-sys/Outil1/internal/models"
)

// NopAuditLog drops audit records. Used when no database is configured.
type NopAuditLog struct{}

func (NopAuditLog) Insert(context.Context, LLMCallRecord) error { return nil }

// NopArchive keeps nothing and finds nothing.
type NopArchive struct{}

func (NopArchive) Upsert(context.Context, models.Analysis) error { return nil }

func (NopArchive) Get(context.Context, string) (models.Analysis, error) {
	return models.Analysis{}, ErrAnalysisNotFound
}

func (NopArchive) ListRecent(context.Context, int) ([]models.Analysis, error) {
	return []models.Analysis{}, nil
}
