package providers

import "strings"

// ProviderRef is one entry of a provider list such as "ollama:llama3.1:8b".
// Everything after the first colon is the alias: a key name for hosted
// gateways, or a model tag where the provider accepts one.
type ProviderRef struct {
	Raw      string `json:"raw"`
	Name     string `json:"name"`
	KeyAlias string `json:"key_alias,omitempty"`
}

// ParseProviderList splits a "|" separated list. Duplicates are dropped and an
// empty list yields the mock provider.
func ParseProviderList(raw string) []ProviderRef {
	parts := strings.Split(raw, "|")
	out := make([]ProviderRef, 0, len(parts))
	seen := map[string]struct{}{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ref := ProviderRef{Raw: p}
		if name, alias, ok := strings.Cut(p, ":"); ok {
			ref.Name = strings.ToLower(strings.TrimSpace(name))
			ref.KeyAlias = strings.TrimSpace(alias)
		} else {
			ref.Name = strings.ToLower(p)
		}
		key := ref.Name + ":" + ref.KeyAlias
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
