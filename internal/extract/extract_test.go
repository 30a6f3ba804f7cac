package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/commercebatola-sys/Outil1/internal/extract/pdftest"
	"github.com/commercebatola-sys/Outil1/internal/util"

	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	name  string
	pages []Page
	err   error
	calls int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Pages(context.Context, []byte) ([]Page, error) {
	s.calls++
	return s.pages, s.err
}

func TestComposeMarkersAndLineStrip(t *testing.T) {
	res := Compose([]Page{
		{Number: 1, Text: "  Rapport annuel 2023  \n   Chiffre d'affaires : 12,4 M€   "},
		{Number: 2, Text: "\n\nBilan\n"},
	}, 0)

	want := "\n\n=== [PAGE 1] ===\nRapport annuel 2023\nChiffre d'affaires : 12,4 M€\n\n=== [PAGE 2] ===\nBilan"
	require.Equal(t, want, res.Text)
	require.Equal(t, 2, res.Pages)
	require.False(t, res.Truncated)
	require.Equal(t, len([]rune(want)), res.Chars)
}

func TestComposeKeepsMarkerForEmptyPage(t *testing.T) {
	res := Compose([]Page{{Text: "a"}, {Text: "   "}, {Text: "c"}}, 0)
	require.Equal(t, 3, CountPageMarkers(res.Text))
	require.Contains(t, res.Text, "=== [PAGE 2] ===\n\n\n=== [PAGE 3] ===")
}

func TestComposeTruncatesByCharacters(t *testing.T) {
	pages := []Page{{Text: strings.Repeat("é", 100)}}
	full := Compose(pages, 0)
	require.Greater(t, full.Chars, 50)

	res := Compose(pages, 50)
	require.True(t, res.Truncated)
	require.Equal(t, 50, res.Chars)
	require.Equal(t, string([]rune(full.Text)[:50]), res.Text)

	exact := Compose(pages, full.Chars)
	require.False(t, exact.Truncated)
}

func TestCountPageMarkers(t *testing.T) {
	require.Equal(t, 0, CountPageMarkers("no markers here"))
	require.Equal(t, 2, CountPageMarkers("=== [PAGE 1] ===\nx\n=== [PAGE 2] ==="))
}

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := Extract(context.Background(), &stubExtractor{name: "stub"}, []byte("hello"), 0)
	require.ErrorIs(t, err, util.ErrNotPDF)
}

func TestExtractNoText(t *testing.T) {
	ex := &stubExtractor{name: "stub", pages: []Page{{Number: 1, Text: "  \x00 "}}}
	_, err := Extract(context.Background(), ex, []byte("%PDF-1.4"), 0)
	require.ErrorIs(t, err, util.ErrNoExtractableText)
}

func TestExtractSanitizesPages(t *testing.T) {
	ex := &stubExtractor{name: "stub", pages: []Page{{Number: 1, Text: "Tr\x00ésorerie\x01"}}}
	res, err := Extract(context.Background(), ex, []byte("%PDF-1.4"), 0)
	require.NoError(t, err)
	require.Equal(t, "\n\n=== [PAGE 1] ===\nTrésorerie", res.Text)
	require.Equal(t, "stub", res.Extractor)
}

func TestNativeExtractsOneMarkerPerPage(t *testing.T) {
	data := pdftest.Build("Revenue 2023", "Net income", "Outlook")
	res, err := Extract(context.Background(), NewNative(), data, 120000)
	require.NoError(t, err)
	require.Equal(t, 3, res.Pages)
	require.Equal(t, 3, CountPageMarkers(res.Text))
	for i, word := range []string{"Revenue", "Net income", "Outlook"} {
		marker := PageMarker(i + 1)
		require.Equal(t, 1, strings.Count(res.Text, marker), marker)
		idx := strings.Index(res.Text, marker)
		require.Contains(t, res.Text[idx:], word)
	}
}

func TestNativeWinAnsiAccents(t *testing.T) {
	data := pdftest.Build("Résultat net")
	pages, err := NewNative().Pages(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Contains(t, pages[0].Text, "Résultat")
}

func TestNativeMalformedPDF(t *testing.T) {
	_, err := NewNative().Pages(context.Background(), []byte("%PDF-1.4\ngarbage"))
	require.Error(t, err)
}

func TestChainFallsBack(t *testing.T) {
	bad := &stubExtractor{name: "bad", err: errors.New("boom")}
	blank := &stubExtractor{name: "blank", pages: []Page{{Number: 1}}}
	good := &stubExtractor{name: "good", pages: []Page{{Number: 1, Text: "ok"}}}

	pages, err := NewChain(bad, blank, good).Pages(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "ok", pages[0].Text)
	require.Equal(t, 1, bad.calls)
	require.Equal(t, 1, blank.calls)
}

func TestChainAllBlankReportsNoText(t *testing.T) {
	blank := &stubExtractor{name: "blank", pages: []Page{{Number: 1}}}
	_, err := Extract(context.Background(), NewChain(blank), []byte("%PDF-1.4"), 0)
	require.ErrorIs(t, err, util.ErrNoExtractableText)
}

func TestChainAllFail(t *testing.T) {
	_, err := NewChain(&stubExtractor{name: "a", err: errors.New("x")}, &stubExtractor{name: "b", err: errors.New("y")}).Pages(context.Background(), nil)
	require.ErrorContains(t, err, "a: x")
	require.ErrorContains(t, err, "b: y")
}

func TestSplitFormFeeds(t *testing.T) {
	pages := splitFormFeeds("one\ftwo\f\fthree\f")
	require.Len(t, pages, 4)
	require.Equal(t, "two", pages[1].Text)
	require.Equal(t, "", pages[2].Text)
	require.Equal(t, 4, pages[3].Number)
	require.Nil(t, splitFormFeeds("  \f"))
}

func TestNewExtractor(t *testing.T) {
	for engine, name := range map[string]string{"": "native+docconv", "chain": "native+docconv", "native": "native", "docconv": "docconv"} {
		ex, err := New(engine)
		require.NoError(t, err)
		require.Equal(t, name, ex.Name())
	}
	_, err := New("ocr")
	require.Error(t, err)
}
