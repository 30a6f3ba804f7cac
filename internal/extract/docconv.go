package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

// Docconv shells out to poppler's pdftotext through code.sajari.com/docconv.
// Pages come back separated by form feeds.
type Docconv struct{}

func NewDocconv() *Docconv { return &Docconv{} }

func (d *Docconv) Name() string { return "docconv" }

func (d *Docconv) Pages(ctx context.Context, data []byte) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("docconv convert pdf: %w", err)
	}
	return splitFormFeeds(body), nil
}

func splitFormFeeds(body string) []Page {
	body = strings.TrimSuffix(body, "\f")
	if strings.TrimSpace(body) == "" {
		return nil
	}
	parts := strings.Split(body, "\f")
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return pages
}
