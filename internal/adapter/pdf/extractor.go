// Package pdf extracts per-page text from PDF files.
package pdf

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"docuchat/backend/internal/apperr"
	"docuchat/backend/internal/text"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file and returns one entry per page, 1-indexed, in page
// order. Pages that carry no extractable text still appear, with empty
// text, so page numbering stays aligned with the source document.
func (e *Extractor) Extract(path string) ([]text.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrExtraction, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]text.Page, 0, total)

	for i := 1; i <= total; i++ {
		page := r.Page(i)

		content := ""
		if !page.V.IsNull() {
			content, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("%w: page %d: %v", apperr.ErrExtraction, i, err)
			}
		}

		pages = append(pages, text.Page{
			PageNumber:     i,
			Text:           content,
			CharacterCount: len(content),
		})
	}

	return pages, nil
}

// Validate reports whether the file parses as a PDF.
func (e *Extractor) Validate(path string) bool {
	f, _, err := pdf.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
