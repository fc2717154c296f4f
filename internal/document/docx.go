package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"docquery/internal/rag"
)

// extractDOCX pulls paragraph text out of word/document.xml. DOCX is just a
// zip of XML; the text lives in w:t runs grouped into w:p paragraphs.
func extractDOCX(body []byte) ([]rag.Segment, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: open docx archive: %v", ErrAcquisition, err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: open document.xml: %v", ErrAcquisition, err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("%w: docx has no document.xml", ErrAcquisition)
	}
	defer docXML.Close()

	text, err := docxParagraphs(docXML)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document.xml: %v", ErrAcquisition, err)
	}
	return []rag.Segment{{
		Text:     text,
		Metadata: map[string]any{"document_type": "docx"},
	}}, nil
}

func docxParagraphs(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var (
		b         strings.Builder
		paragraph strings.Builder
		inText    bool
	)
	flush := func() {
		if p := strings.TrimSpace(paragraph.String()); p != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(p)
		}
		paragraph.Reset()
	}
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				paragraph.Write(t)
			}
		}
	}
	flush()
	return b.String(), nil
}
