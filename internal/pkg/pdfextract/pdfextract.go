package pdfextract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"vidyai-rag/internal/chunker"
)

// Extractor returns the plain text of a PDF page by page.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns one Page per PDF page, numbered from 1. An empty input yields no pages.
// Pages without a text layer come back with empty Text.
func (e *Extractor) Extract(raw []byte) (pages []chunker.Page, err error) {
	if len(raw) == 0 {
		return nil, nil
	}
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read pdf failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	total := reader.NumPage()
	pages = make([]chunker.Page, 0, total)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, chunker.Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d failed: %w", i, err)
		}
		pages = append(pages, chunker.Page{Number: i, Text: text})
	}
	return pages, nil
}
