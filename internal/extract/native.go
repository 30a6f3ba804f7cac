package extract

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Native reads PDFs in-process with github.com/ledongthuc/pdf.
type Native struct{}

func NewNative() *Native { return &Native{} }

func (n *Native) Name() string { return "native" }

func (n *Native) Pages(ctx context.Context, data []byte) (pages []Page, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, wrapPanic(n.Name(), r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := r.NumPage()
	pages = make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		text := ""
		if !p.V.IsNull() {
			text, err = p.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("extract page %d: %w", i, err)
			}
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
