package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Chain tries each extractor in order and keeps the first one that yields text.
type Chain struct {
	extractors []Extractor
}

func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.extractors))
	for _, e := range c.extractors {
		names = append(names, e.Name())
	}
	return strings.Join(names, "+")
}

func (c *Chain) Pages(ctx context.Context, data []byte) ([]Page, error) {
	var (
		errs  []error
		blank []Page
		ok    bool
	)
	for _, e := range c.extractors {
		pages, err := e.Pages(ctx, data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		if hasText(pages) {
			return pages, nil
		}
		if !ok {
			blank, ok = pages, true
		}
	}
	// Every extractor that parsed the file found no text; let the caller
	// report it as such rather than as a parse failure.
	if ok {
		return blank, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no extractors configured")
	}
	return nil, errors.Join(errs...)
}

func hasText(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

// New builds the extractor named by engine: "native", "docconv" or "chain".
func New(engine string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", "chain":
		return NewChain(NewNative(), NewDocconv()), nil
	case "native":
		return NewNative(), nil
	case "docconv":
		return NewDocconv(), nil
	default:
		return nil, fmt.Errorf("unsupported extractor: %s", engine)
	}
}
