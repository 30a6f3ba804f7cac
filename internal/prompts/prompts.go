// Package prompts holds the instructions sent to inference endpoints. The
// wording is French because the target documents and users are.
package prompts

import (
	"fmt"
	"strings"

	"github.com/commercebatola-sys/Outil1/internal/config"
)

const DefaultSummaryWords = 300

// Sector selects extra indicator examples in the summary instruction.
type Sector string

const (
	SectorGeneral Sector = "general"
	SectorBank    Sector = "bank"
)

func ParseSector(s string) (Sector, error) {
	switch Sector(strings.ToLower(strings.TrimSpace(s))) {
	case "", SectorGeneral:
		return SectorGeneral, nil
	case SectorBank:
		return SectorBank, nil
	default:
		return "", fmt.Errorf("unknown sector %q", s)
	}
}

const summaryTemplate = `Tu es analyste financier expert. On te fournit le texte d'un document financier
(rapport annuel, trimestriel, comptes, bilan, annexes).

Produis une synthèse **précise et chiffrée** en Markdown selon ce cadre :

- **Société / Période / Devise** : (si repérable)
- **Résumé exécutif** : activité, faits marquants, contexte (%d-%d lignes)
- **Chiffres clés** (tableau) :
 | Indicateur | Valeur | Évolution/Contexte | Période | Page |
 |---|---:|---|---|---:|
 (exemples : Chiffre d'affaires, EBIT/EBITDA, Résultat net, Marge, FCF, CAPEX,
 Dette nette, Trésorerie, %setc.)
- **Analyse** :
 - Performance (croissance, marges, cash)
 - Structure financière (dette, liquidité)
 - Risques & incertitudes (marché, réglementation, change)
 - Outlook / Guidance (si communiqué)
- **Références internes** : pages/sections à relire

Exigences :
- **N'invente aucun chiffre**. Si une valeur n'apparaît pas clairement : ` + "`non précisé`" + `.
- Cite la **Page** d'origine quand c'est possible (repère ` + "`=== [PAGE X] ===`" + `).
- 6 à 12 **indicateurs quantitatifs** maximum (les plus utiles).
- Reste concis : %d-%d mots hors tableau.`

const questionSystem = "Tu es analyste financier. On te donne un extrait de rapport financier. \n" +
	"Réponds uniquement à la question posée, sans inventer de données. \n" +
	"Si la réponse n'est pas claire dans le texte, écris : 'non précisé'. \n" +
	"Quand c'est possible, indique aussi la page d'origine (repère '=== [PAGE X] ===').\n" +
	"Sois concis et précis."

// SummarySystemPrompt builds the summary instruction for a target length in
// words, clamped to the accepted range. The executive summary spans words/4 to
// words/3 lines and the prose outside the table stays within 50 words of the
// target.
func SummarySystemPrompt(words int, sector Sector) string {
	words = config.ClampSummaryWords(words)
	if words == 0 {
		words = DefaultSummaryWords
	}
	extra := ""
	if sector == SectorBank {
		extra = "NPL/Coût du risque pour banque, CET1, LCR/NSFR, "
	}
	return fmt.Sprintf(summaryTemplate, words/4, words/3, extra, words-50, words+50)
}

func QuestionSystemPrompt() string {
	return questionSystem
}

func QuestionUserMessage(question, text string) string {
	return "Question : " + question + "\n\nTexte PDF :\n" + text
}
