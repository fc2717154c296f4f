package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"docquery/internal/rag"
)

// extractPDF returns one segment per page with the page number attached, so
// answers can cite pages.
func extractPDF(body []byte) ([]rag.Segment, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty pdf payload", ErrAcquisition)
	}
	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse pdf: %v", ErrAcquisition, err)
	}

	var segments []rag.Segment
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page should not sink the whole document.
			continue
		}
		segments = append(segments, rag.Segment{
			Text: text,
			Metadata: map[string]any{
				"page_number":   pageNum,
				"document_type": "pdf",
			},
		})
	}
	return segments, nil
}
