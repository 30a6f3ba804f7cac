package reports

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// KeyFigure is one row of the summary's key-figures table.
type KeyFigure struct {
	Indicator string `json:"indicator"`
	Value     string `json:"value"`
	Context   string `json:"context"`
	Period    string `json:"period"`
	Page      string `json:"page"`
}

// ReportMeta describes the document a summary was produced from.
type ReportMeta struct {
	Filename    string
	Pages       int
	Chars       int
	Provider    string
	Model       string
	GeneratedAt time.Time
}

const (
	figuresSheet  = "Chiffres clés"
	documentSheet = "Document"
)

// ParseKeyFigures reads the first markdown table whose header names the
// "Indicateur" and "Valeur" columns. Missing trailing cells are left empty.
func ParseKeyFigures(markdown string) []KeyFigure {
	out := []KeyFigure{}
	inTable := false
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			if inTable {
				break
			}
			continue
		}
		cells := splitRow(line)
		if !inTable {
			if len(cells) >= 2 && strings.EqualFold(cells[0], "Indicateur") && strings.EqualFold(cells[1], "Valeur") {
				inTable = true
			}
			continue
		}
		if isSeparatorRow(cells) {
			continue
		}
		for len(cells) < 5 {
			cells = append(cells, "")
		}
		if cells[0] == "" {
			continue
		}
		out = append(out, KeyFigure{
			Indicator: cells[0],
			Value:     cells[1],
			Context:   cells[2],
			Period:    cells[3],
			Page:      cells[4],
		})
	}
	return out
}

func splitRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

// KeyFiguresXLSX builds a workbook with the key figures and a sheet of
// document metadata.
func KeyFiguresXLSX(figures []KeyFigure, meta ReportMeta) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", figuresSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	headers := []string{"Indicateur", "Valeur", "Évolution/Contexte", "Période", "Page"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(figuresSheet, cell, h)
	}
	for r, kf := range figures {
		for c, v := range []string{kf.Indicator, kf.Value, kf.Context, kf.Period, kf.Page} {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(figuresSheet, cell, v)
		}
	}
	_ = f.SetColWidth(figuresSheet, "A", "A", 32)
	_ = f.SetColWidth(figuresSheet, "B", "B", 18)
	_ = f.SetColWidth(figuresSheet, "C", "C", 40)
	_ = f.SetColWidth(figuresSheet, "D", "E", 12)

	if _, err := f.NewSheet(documentSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	generated := meta.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	rows := [][2]any{
		{"Fichier", meta.Filename},
		{"Pages analysées", meta.Pages},
		{"Caractères analysés", meta.Chars},
		{"Fournisseur", meta.Provider},
		{"Modèle", meta.Model},
		{"Généré le", generated.UTC().Format(time.RFC3339)},
	}
	for i, row := range rows {
		_ = f.SetCellValue(documentSheet, fmt.Sprintf("A%d", i+1), row[0])
		_ = f.SetCellValue(documentSheet, fmt.Sprintf("B%d", i+1), row[1])
	}
	_ = f.SetColWidth(documentSheet, "A", "A", 22)
	_ = f.SetColWidth(documentSheet, "B", "B", 48)
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
