package extract

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/commercebatola-sys/Outil1/internal/util"
)

// PageMarkerPrefix starts every page header inserted into composed text.
const PageMarkerPrefix = "=== [PAGE"

type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type Result struct {
	Text      string `json:"text"`
	Pages     int    `json:"pages"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
	Extractor string `json:"extractor"`
}

type Extractor interface {
	Name() string
	Pages(ctx context.Context, data []byte) ([]Page, error)
}

func PageMarker(n int) string {
	return PageMarkerPrefix + " " + strconv.Itoa(n) + "] ==="
}

// Compose joins pages into one document. Each page is introduced by a blank
// line and its marker, every line is trimmed, and the result is cut to
// maxChars characters when maxChars is positive.
func Compose(pages []Page, maxChars int) Result {
	var b strings.Builder
	for i, p := range pages {
		b.WriteString("\n\n")
		b.WriteString(PageMarker(i + 1))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(p.Text))
	}
	text := stripLines(b.String())

	res := Result{Pages: len(pages)}
	if maxChars > 0 && util.RuneCount(text) > maxChars {
		text = string([]rune(text)[:maxChars])
		res.Truncated = true
	}
	res.Text = text
	res.Chars = util.RuneCount(text)
	return res
}

// Extract validates data, runs ex and composes the pages.
func Extract(ctx context.Context, ex Extractor, data []byte, maxChars int) (Result, error) {
	if !IsPDF(data) {
		return Result{}, util.ErrNotPDF
	}
	pages, err := ex.Pages(ctx, data)
	if err != nil {
		return Result{}, err
	}
	empty := true
	for i := range pages {
		pages[i].Text = util.SanitizeText(pages[i].Text)
		if pages[i].Text != "" {
			empty = false
		}
	}
	if empty {
		return Result{}, util.ErrNoExtractableText
	}
	res := Compose(pages, maxChars)
	res.Extractor = ex.Name()
	return res, nil
}

func CountPageMarkers(text string) int {
	return strings.Count(text, PageMarkerPrefix)
}

// IsPDF reports whether the PDF header appears in the first kilobyte, which is
// where readers are required to look for it.
func IsPDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}

func stripLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}

func wrapPanic(name string, r any) error {
	return fmt.Errorf("%s extractor: malformed pdf: %v", name, r)
}
