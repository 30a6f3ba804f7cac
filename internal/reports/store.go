package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/config"
	"github.com/commercebatola-sys/Outil1/internal/util"
)

var ErrReportNotFound = errors.New("report not found")

const (
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
	ContentTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Store keeps generated reports. Keys are slash separated.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// NewStore picks the backend named by cfg.ReportStore.
func NewStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch strings.ToLower(cfg.ReportStore) {
	case "", "local":
		return NewLocalStore(cfg.DataOutRoot), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	case "none":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported report store: %s", cfg.ReportStore)
	}
}

// SummaryFilename is the download name of a summary generated at t.
func SummaryFilename(t time.Time) string {
	return "resume_financier_" + t.Format("20060102_150405") + ".md"
}

// SessionKey builds the key for a report that belongs to a session.
func SessionKey(sessionID, filename string) (string, error) {
	return util.SafeKey("sessions", sessionID, filename)
}

// AnalysisKey builds the key for a report produced by an async analysis.
func AnalysisKey(analysisID, filename string) (string, error) {
	return util.SafeKey("analyses", analysisID, filename)
}

// NopStore discards reports.
type NopStore struct{}

func (NopStore) Put(context.Context, string, []byte, string) (string, error) { return "", nil }

func (NopStore) Get(context.Context, string) ([]byte, error) { return nil, ErrReportNotFound }
