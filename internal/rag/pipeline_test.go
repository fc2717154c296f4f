package rag

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves canned segments and counts downloads.
type stubFetcher struct {
	segments []Segment
	err      error
	calls    int
}

func (f *stubFetcher) FetchAndExtract(context.Context, string) ([]Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

// echoEmbedder gives every text the same unit vector so any chunk matches
// any query with score 1.
type echoEmbedder struct{ dimension int }

func (e *echoEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dimension)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

// promptGenerator routes prompts to answers by substring.
type promptGenerator struct {
	respond func(prompt string) (string, error)
}

func (g *promptGenerator) Generate(_ context.Context, prompt string, _ GenerateOptions) (string, error) {
	return g.respond(prompt)
}

const policyText = "The grace period is 30 days. Claims must be filed within 90 days."

func newTestPipeline(t *testing.T, fetcher *stubFetcher, gen TextGenerator, cache AnswerCache, indexPath string) *Pipeline {
	t.Helper()
	if gen == nil {
		gen = &promptGenerator{respond: func(string) (string, error) {
			return "the grace period is 30 days", nil
		}}
	}
	return NewPipeline(
		fetcher,
		NewChunker(1000, 200),
		&echoEmbedder{dimension: 4},
		NewAnswerGenerator(gen, GenerateOptions{}),
		NewOptimizer(cache, 0.8, 5),
		4,
		5,
		indexPath,
	)
}

func TestPipeline_AnswersQuestion(t *testing.T) {
	fetcher := &stubFetcher{segments: []Segment{{Text: policyText}}}
	p := newTestPipeline(t, fetcher, nil, nil, "")

	answers, err := p.ProcessQueries(context.Background(), "https://example.com/policy.pdf", []string{
		"What is the grace period?",
	})

	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "The grace period is 30 days.", answers[0])
	assert.Equal(t, 1, fetcher.calls)
}

func TestPipeline_DocumentIndexedOnce(t *testing.T) {
	fetcher := &stubFetcher{segments: []Segment{{Text: policyText}}}
	p := newTestPipeline(t, fetcher, nil, nil, "")
	ctx := context.Background()

	_, err := p.ProcessQueries(ctx, "https://example.com/policy.pdf", []string{"q1", "q2"})
	require.NoError(t, err)
	_, err = p.ProcessQueries(ctx, "https://example.com/policy.pdf", []string{"q3"})
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.Positive(t, p.ChunkCount())
}

func TestPipeline_NewDocumentRebuildsIndex(t *testing.T) {
	fetcher := &stubFetcher{segments: []Segment{{Text: policyText}}}
	p := newTestPipeline(t, fetcher, nil, nil, "")
	ctx := context.Background()

	_, err := p.ProcessQueries(ctx, "https://example.com/a.pdf", []string{"q"})
	require.NoError(t, err)
	_, err = p.ProcessQueries(ctx, "https://example.com/b.pdf", []string{"q"})
	require.NoError(t, err)

	assert.Equal(t, 2, fetcher.calls)
}

func TestPipeline_QuestionFailureIsIsolated(t *testing.T) {
	fetcher := &stubFetcher{segments: []Segment{{Text: policyText}}}
	gen := &promptGenerator{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "second question") {
			return "", errors.New("backend down")
		}
		return "the grace period is 30 days", nil
	}}
	answerCache := newMapCache()
	p := newTestPipeline(t, fetcher, gen, answerCache, "")

	results, err := p.ProcessQueriesDetailed(context.Background(), "https://example.com/policy.pdf", []string{
		"first question",
		"second question",
		"third question",
	})

	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Failed)
	assert.Equal(t, "The grace period is 30 days.", results[0].Answer)

	assert.True(t, results[1].Failed)
	assert.True(t, strings.HasPrefix(results[1].Answer, "Error processing question:"), results[1].Answer)

	assert.False(t, results[2].Failed)
	assert.Equal(t, "The grace period is 30 days.", results[2].Answer)

	// only successful answers may be cached
	assert.True(t, p.optimizer.ShouldUseCache("first question", "https://example.com/policy.pdf"))
	assert.False(t, p.optimizer.ShouldUseCache("second question", "https://example.com/policy.pdf"))
}

func TestPipeline_CachedAnswerSkipsGeneration(t *testing.T) {
	fetcher := &stubFetcher{segments: []Segment{{Text: policyText}}}
	generations := 0
	gen := &promptGenerator{respond: func(string) (string, error) {
		generations++
		return "the grace period is 30 days", nil
	}}
	p := newTestPipeline(t, fetcher, gen, newMapCache(), "")
	ctx := context.Background()

	_, err := p.ProcessQueries(ctx, "https://example.com/policy.pdf", []string{"What is the grace period?"})
	require.NoError(t, err)
	require.Equal(t, 1, generations)

	results, err := p.ProcessQueriesDetailed(ctx, "https://example.com/policy.pdf", []string{"What is the grace period?"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Cached)
	assert.Equal(t, "The grace period is 30 days.", results[0].Answer)
	assert.Equal(t, 1, generations)
}

func TestPipeline_FetchFailureAbortsRun(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	p := newTestPipeline(t, fetcher, nil, nil, "")

	_, err := p.ProcessQueries(context.Background(), "https://example.com/policy.pdf", []string{"q"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPipeline_EmptyDocument(t *testing.T) {
	fetcher := &stubFetcher{segments: []Segment{{Text: "   \n  "}}}
	p := newTestPipeline(t, fetcher, nil, nil, "")

	_, err := p.ProcessQueries(context.Background(), "https://example.com/policy.pdf", []string{"q"})

	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestPipeline_PersistedIndexSkipsFetch(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "index")
	ctx := context.Background()

	first := &stubFetcher{segments: []Segment{{Text: policyText}}}
	p1 := newTestPipeline(t, first, nil, nil, indexPath)
	_, err := p1.ProcessQueries(ctx, "https://example.com/policy.pdf", []string{"q"})
	require.NoError(t, err)
	require.Equal(t, 1, first.calls)

	second := &stubFetcher{segments: []Segment{{Text: policyText}}}
	p2 := newTestPipeline(t, second, nil, nil, indexPath)
	answers, err := p2.ProcessQueries(ctx, "https://example.com/policy.pdf", []string{"What is the grace period?"})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "The grace period is 30 days.", answers[0])
	assert.Equal(t, 0, second.calls)
}

func TestPipeline_ProcessDecision(t *testing.T) {
	fetcher := &stubFetcher{segments: []Segment{{Text: policyText}}}
	gen := &promptGenerator{respond: func(string) (string, error) {
		return `{"decision": "approved", "justification": "within the filing window", "confidence_score": 0.9}`, nil
	}}
	p := newTestPipeline(t, fetcher, gen, nil, "")

	result, err := p.ProcessDecision(context.Background(), "https://example.com/policy.pdf", "Can the claim be filed?")

	require.NoError(t, err)
	assert.True(t, result.Structured)
	assert.Equal(t, "approved", result.Decision)
	assert.InDelta(t, 0.9, result.ConfidenceScore, 1e-9)
}
