package rag

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Chunk is a bounded segment of document text with provenance metadata,
// the unit of retrieval. Immutable after creation.
type Chunk struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	ChunkID    string         `json:"chunk_id"`
	PageNumber int            `json:"page_number,omitempty"` // 0 = unknown
}

// Chunker splits raw text into overlapping chunks, preferring to cut at
// sentence or paragraph boundaries instead of mid-sentence.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into chunks. Runs of whitespace are collapsed to a
// single space before splitting.
func (c *Chunker) Chunk(text string, metadata map[string]any) []Chunk {
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))

	pageNumber := pageNumberFrom(metadata)

	if len(text) == 0 {
		return nil
	}
	if len(text) <= c.chunkSize {
		return []Chunk{{
			Content:    text,
			Metadata:   copyMetadata(metadata, 0),
			ChunkID:    uuid.NewString(),
			PageNumber: pageNumber,
		}}
	}

	var chunks []Chunk
	start := 0
	chunkNum := 0
	for start < len(text) {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		} else {
			// Snap the cut back to the last sentence terminator, falling
			// back to a paragraph break.
			lastSentence := strings.LastIndexByte(text[start:end], '.')
			lastParagraph := strings.LastIndexByte(text[start:end], '\n')
			if lastSentence > 0 {
				end = start + lastSentence + 1
			} else if lastParagraph > 0 {
				end = start + lastParagraph
			}
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Content:    content,
				Metadata:   copyMetadata(metadata, chunkNum),
				ChunkID:    uuid.NewString(),
				PageNumber: pageNumber,
			})
		}

		// start must strictly increase even when overlap >= chunk size,
		// otherwise the loop never terminates.
		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
		chunkNum++
	}
	return chunks
}

func copyMetadata(metadata map[string]any, chunkNum int) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["chunk_number"] = chunkNum
	return out
}

func pageNumberFrom(metadata map[string]any) int {
	switch v := metadata["page_number"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
