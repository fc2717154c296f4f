// Package document downloads source documents and extracts plain text
// segments from them, dispatching on media type.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docquery/internal/rag"
)

// ErrAcquisition marks every document-level failure: network errors,
// unsupported formats and empty content.
var ErrAcquisition = errors.New("document acquisition failed")

const defaultMaxBytes = 50 << 20 // 50 MB

// Fetcher downloads documents over HTTP and extracts text segments.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// FetchAndExtract downloads documentURL and returns its extracted text
// segments. PDFs yield one segment per page; other formats yield one.
func (f *Fetcher) FetchAndExtract(ctx context.Context, documentURL string) ([]rag.Segment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrAcquisition, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", ErrAcquisition, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: download status %d", ErrAcquisition, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrAcquisition, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: document larger than %d bytes", ErrAcquisition, f.maxBytes)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	segments, err := Extract(body, contentType, documentURL)
	if err != nil {
		return nil, err
	}
	return segments, nil
}

// Extract dispatches raw bytes to the right extractor based on content type
// and URL extension.
func Extract(body []byte, contentType, documentURL string) ([]rag.Segment, error) {
	lowerURL := strings.ToLower(documentURL)
	// Query strings on signed URLs hide the extension.
	if i := strings.IndexByte(lowerURL, '?'); i >= 0 {
		lowerURL = lowerURL[:i]
	}

	var (
		segments []rag.Segment
		err      error
	)
	switch {
	case strings.Contains(contentType, "pdf") || strings.HasSuffix(lowerURL, ".pdf"):
		segments, err = extractPDF(body)
	case strings.Contains(contentType, "word") ||
		strings.HasSuffix(lowerURL, ".docx") || strings.HasSuffix(lowerURL, ".doc"):
		segments, err = extractDOCX(body)
	default:
		segments, err = extractText(string(body))
	}
	if err != nil {
		return nil, err
	}

	nonEmpty := segments[:0]
	for _, s := range segments {
		if strings.TrimSpace(s.Text) != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, fmt.Errorf("%w: no extractable text", ErrAcquisition)
	}
	return nonEmpty, nil
}

// extractText handles plain text, trying email parsing first when the body
// looks like a message.
func extractText(text string) ([]rag.Segment, error) {
	if strings.Contains(text, "@") && (strings.Contains(text, "From:") || strings.Contains(text, "To:")) {
		if segments, err := extractEmail(text); err == nil {
			return segments, nil
		}
		// Fall through to plain text when the message cannot be parsed.
	}
	return []rag.Segment{{
		Text:     text,
		Metadata: map[string]any{"document_type": "text"},
	}}, nil
}
