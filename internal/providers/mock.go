package providers

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const mockModel = "mock-llm-v1"

// MockProvider answers deterministically from the request alone. It keeps the
// service usable offline and in tests.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, ProviderInfo, error) {
	if err := ctx.Err(); err != nil {
		return ChatResponse{}, ProviderInfo{Name: "mock", Model: mockModel, Key: "mock"}, err
	}
	user := ""
	if n := len(req.Messages); n > 0 {
		user = req.Messages[n-1].Content
	}
	pages := strings.Count(user, "=== [PAGE")
	var text string
	switch {
	case strings.Contains(strings.ToLower(req.Operation), "summary"):
		text = fmt.Sprintf(`- **Société / Période / Devise** : non précisé
- **Résumé exécutif** : synthèse simulée d'un document de %d page(s), sans appel à un modèle.
- **Chiffres clés** (tableau) :
 | Indicateur | Valeur | Évolution/Contexte | Période | Page |
 |---|---:|---|---|---:|
 | Pages analysées | %d | non précisé | non précisé | 1 |
 | Caractères analysés | %d | non précisé | non précisé | 1 |
- **Analyse** : non précisé
- **Références internes** : === [PAGE 1] ===`, pages, pages, utf8.RuneCountInString(user))
	default:
		q := user
		if i := strings.Index(q, "\n\nTexte PDF :"); i >= 0 {
			q = q[:i]
		}
		q = strings.TrimSpace(strings.TrimPrefix(q, "Question :"))
		text = fmt.Sprintf("non précisé (réponse simulée à « %s », %d page(s) fournies)", q, pages)
	}
	model := req.Model
	if model == "" {
		model = mockModel
	}
	return ChatResponse{Text: text}, ProviderInfo{Name: "mock", Model: model, Key: "mock"}, nil
}

func (m *MockProvider) ListModels(context.Context) ([]string, error) {
	return []string{mockModel}, nil
}

func (m *MockProvider) DefaultModel() string {
	return mockModel
}
