package prompts

import (
	"strings"
	"testing"
)

func TestSummarySystemPromptScalesWithLength(t *testing.T) {
	p := SummarySystemPrompt(300, SectorGeneral)
	for _, want := range []string{
		"contexte (75-100 lignes)",
		"Reste concis : 250-350 mots hors tableau.",
		"| Indicateur | Valeur | Évolution/Contexte | Période | Page |",
		"`non précisé`",
		"`=== [PAGE X] ===`",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("summary prompt missing %q", want)
		}
	}
	if strings.Contains(p, "CET1") {
		t.Fatalf("general prompt should not carry banking indicators")
	}
	if strings.Contains(p, "%!") {
		t.Fatalf("format verbs leaked into prompt:\n%s", p)
	}
}

func TestSummarySystemPromptDefaultsAndBank(t *testing.T) {
	if SummarySystemPrompt(0, SectorGeneral) != SummarySystemPrompt(DefaultSummaryWords, SectorGeneral) {
		t.Fatalf("expected zero words to fall back to default")
	}
	p := SummarySystemPrompt(150, SectorBank)
	if !strings.Contains(p, "Dette nette, Trésorerie, NPL/Coût du risque pour banque, CET1, LCR/NSFR, etc.)") {
		t.Fatalf("bank prompt missing indicators:\n%s", p)
	}
	if !strings.Contains(p, "(37-50 lignes)") || !strings.Contains(p, "100-200 mots") {
		t.Fatalf("unexpected bounds for 150 words:\n%s", p)
	}
}

func TestSummarySystemPromptClampsLength(t *testing.T) {
	if SummarySystemPrompt(1000, SectorGeneral) != SummarySystemPrompt(500, SectorGeneral) {
		t.Fatalf("expected lengths above the range to clamp to 500 words")
	}
	if !strings.Contains(SummarySystemPrompt(20, SectorGeneral), "100-200 mots") {
		t.Fatalf("expected lengths below the range to clamp to 150 words")
	}
}

func TestQuestionMessages(t *testing.T) {
	got := QuestionUserMessage("Quel est le résultat net ?", "=== [PAGE 1] ===\nRésultat net : 4 M€")
	want := "Question : Quel est le résultat net ?\n\nTexte PDF :\n=== [PAGE 1] ===\nRésultat net : 4 M€"
	if got != want {
		t.Fatalf("unexpected user message:\n%q", got)
	}
	if !strings.HasSuffix(QuestionSystemPrompt(), "Sois concis et précis.") {
		t.Fatalf("unexpected question instruction")
	}
}

func TestParseSector(t *testing.T) {
	cases := map[string]Sector{"": SectorGeneral, "general": SectorGeneral, "BANK": SectorBank}
	for in, want := range cases {
		got, err := ParseSector(in)
		if err != nil || got != want {
			t.Fatalf("parse %q: got %q err %v", in, got, err)
		}
	}
	if _, err := ParseSector("insurance"); err == nil {
		t.Fatalf("expected unknown sector error")
	}
}
