package rag

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

var ErrEmptyDocument = errors.New("no content extracted from document")

// Segment is one extracted portion of a source document (for PDFs, one page)
// together with its type metadata.
type Segment struct {
	Text     string
	Metadata map[string]any
}

// Fetcher downloads a document and extracts plain text segments from it.
type Fetcher interface {
	FetchAndExtract(ctx context.Context, documentURL string) ([]Segment, error)
}

// QueryResult is the per-question outcome of a pipeline run.
type QueryResult struct {
	Question string
	Answer   string
	Scores   []float32
	Cached   bool
	Duration time.Duration
	Failed   bool
}

// documentContext owns the index for one document. It is built fully before
// being swapped in, so searches always see a complete index.
type documentContext struct {
	url   string
	index *Index
}

// Pipeline coordinates the retrieval-and-answer flow: fetch and chunk a
// document once, then for each question search, optimize the selection and
// generate a grounded answer. One active document context at a time.
type Pipeline struct {
	fetcher   Fetcher
	chunker   *Chunker
	embedder  Embedder
	generator *AnswerGenerator
	optimizer *Optimizer
	dimension int
	topK      int
	indexPath string // "" disables index persistence

	mu      sync.Mutex
	current *documentContext
}

func NewPipeline(
	fetcher Fetcher,
	chunker *Chunker,
	embedder Embedder,
	generator *AnswerGenerator,
	optimizer *Optimizer,
	dimension int,
	topK int,
	indexPath string,
) *Pipeline {
	if topK <= 0 {
		topK = 5
	}
	return &Pipeline{
		fetcher:   fetcher,
		chunker:   chunker,
		embedder:  embedder,
		generator: generator,
		optimizer: optimizer,
		dimension: dimension,
		topK:      topK,
		indexPath: indexPath,
	}
}

// ProcessQueries answers every question against the document at documentURL.
// Answers match the input order. A failure on one question becomes an inline
// error string; only document-level failures abort the call.
func (p *Pipeline) ProcessQueries(ctx context.Context, documentURL string, questions []string) ([]string, error) {
	results, err := p.ProcessQueriesDetailed(ctx, documentURL, questions)
	if err != nil {
		return nil, err
	}
	answers := make([]string, len(results))
	for i := range results {
		answers[i] = results[i].Answer
	}
	return answers, nil
}

// ProcessQueriesDetailed is ProcessQueries plus per-question timing, scores
// and cache information, for logging.
func (p *Pipeline) ProcessQueriesDetailed(ctx context.Context, documentURL string, questions []string) ([]QueryResult, error) {
	docCtx, err := p.ensureDocument(ctx, documentURL)
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0, len(questions))
	for i, question := range questions {
		start := time.Now()
		result := QueryResult{Question: question}

		if cached, ok := p.optimizer.GetCachedResult(question, documentURL); ok {
			result.Answer = cached
			result.Cached = true
		} else {
			answer, scores, err := p.answerQuestion(ctx, docCtx, question)
			if err != nil {
				log.Printf("question %d/%d failed: %v", i+1, len(questions), err)
				result.Answer = fmt.Sprintf("Error processing question: %v", err)
				result.Failed = true
			} else {
				result.Answer = answer
				result.Scores = scores
				p.optimizer.CacheResult(question, documentURL, answer)
			}
		}

		result.Duration = time.Since(start)
		p.optimizer.LogPerformance("query", result.Duration, map[string]any{
			"document_url": documentURL,
			"cached":       result.Cached,
		})
		results = append(results, result)
	}
	return results, nil
}

// ProcessDecision answers one question as a structured decision.
func (p *Pipeline) ProcessDecision(ctx context.Context, documentURL, question string) (*DecisionResult, error) {
	docCtx, err := p.ensureDocument(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	matches, err := docCtx.index.Search(ctx, question, p.topK)
	if err != nil {
		return nil, err
	}
	selected := p.optimizer.OptimizeChunkSelection(matches, question)
	return p.generator.ExtractStructuredDecision(ctx, question, selected)
}

func (p *Pipeline) answerQuestion(ctx context.Context, docCtx *documentContext, question string) (string, []float32, error) {
	searchStart := time.Now()
	matches, err := docCtx.index.Search(ctx, question, p.topK)
	if err != nil {
		return "", nil, err
	}
	p.optimizer.LogPerformance("search", time.Since(searchStart), nil)

	if len(matches) == 0 {
		return "No relevant information found in the document for this question.", nil, nil
	}

	selected := p.optimizer.OptimizeChunkSelection(matches, question)

	genStart := time.Now()
	answer, err := p.generator.GenerateAnswer(ctx, question, selected)
	if err != nil {
		return "", nil, err
	}
	p.optimizer.LogPerformance("generation", time.Since(genStart), nil)

	scores := make([]float32, len(selected))
	for i := range selected {
		scores[i] = selected[i].SimilarityScore
	}
	return answer, scores, nil
}

// ensureDocument reuses the current index when the URL is unchanged,
// otherwise builds a fresh context and swaps it in.
func (p *Pipeline) ensureDocument(ctx context.Context, documentURL string) (*documentContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.url == documentURL {
		return p.current, nil
	}

	// A previously persisted index for this document skips the whole
	// fetch-chunk-embed pass.
	if p.indexPath != "" {
		index := NewIndex(p.embedder, p.dimension)
		if index.Load(p.snapshotPath(documentURL)) {
			p.current = &documentContext{url: documentURL, index: index}
			log.Printf("loaded persisted index for %s", documentURL)
			return p.current, nil
		}
	}

	start := time.Now()
	segments, err := p.fetcher.FetchAndExtract(ctx, documentURL)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for _, segment := range segments {
		chunks = append(chunks, p.chunker.Chunk(segment.Text, segment.Metadata)...)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	index := NewIndex(p.embedder, p.dimension)
	if err := index.Build(ctx, chunks); err != nil {
		return nil, err
	}

	p.current = &documentContext{url: documentURL, index: index}
	if p.indexPath != "" {
		if err := index.Save(p.snapshotPath(documentURL)); err != nil {
			log.Printf("persist index for %s failed: %v", documentURL, err)
		}
	}
	p.optimizer.LogPerformance("document_processing", time.Since(start), map[string]any{
		"document_url": documentURL,
		"chunk_count":  len(chunks),
	})
	log.Printf("indexed document %s (%d chunks)", documentURL, len(chunks))
	return p.current, nil
}

func (p *Pipeline) snapshotPath(documentURL string) string {
	h := fnv.New64a()
	h.Write([]byte(documentURL))
	return fmt.Sprintf("%s-%016x", p.indexPath, h.Sum64())
}

// ChunkCount reports the size of the current index context, 0 when idle.
func (p *Pipeline) ChunkCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	p.current.index.mu.RLock()
	defer p.current.index.mu.RUnlock()
	return len(p.current.index.chunks)
}
