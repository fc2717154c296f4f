package document

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"regexp"
	"strings"

	"docquery/internal/rag"
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// extractEmail parses an RFC 822 message, keeping the headers as metadata
// and the text body as the segment text.
func extractEmail(raw string) ([]rag.Segment, error) {
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parse email: %v", ErrAcquisition, err)
	}

	metadata := map[string]any{
		"document_type": "email",
		"from":          msg.Header.Get("From"),
		"to":            msg.Header.Get("To"),
		"subject":       msg.Header.Get("Subject"),
		"date":          msg.Header.Get("Date"),
	}

	body, err := emailBody(msg)
	if err != nil {
		return nil, err
	}
	return []rag.Segment{{Text: body, Metadata: metadata}}, nil
}

func emailBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		raw, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", fmt.Errorf("%w: read email body: %v", ErrAcquisition, err)
		}
		return string(raw), nil
	}

	var b strings.Builder
	reader := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: read email part: %v", ErrAcquisition, err)
		}
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		raw, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		switch partType {
		case "text/plain":
			b.Write(raw)
		case "text/html":
			b.WriteString(htmlTag.ReplaceAllString(string(raw), " "))
		}
	}
	return b.String(), nil
}
