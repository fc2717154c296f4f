package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedGenerator returns a canned response and records what it was asked.
type scriptedGenerator struct {
	response string
	err      error

	prompts []string
	opts    []GenerateOptions
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string, opts GenerateOptions) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.opts = append(g.opts, opts)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func TestCleanAnswer(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "verbose prefix stripped",
			in:   "Based on the provided document context, the grace period is 30 days.",
			want: "The grace period is 30 days.",
		},
		{
			name: "according to the document",
			in:   "According to the document, the waiting period is two years.",
			want: "The waiting period is two years.",
		},
		{
			name: "chunk reference removed",
			in:   "The fee is waived (Chunk 2).",
			want: "The fee is waived.",
		},
		{
			name: "bullets flattened",
			in:   "Coverage includes:\n* dental care\n* vision care",
			want: "Coverage includes: dental care vision care.",
		},
		{
			name: "numbered list flattened",
			in:   "1. First claim\n2. Second claim",
			want: "First claim Second claim.",
		},
		{
			name: "section reference removed",
			in:   "The deductible is $500 as per section 4.2.",
			want: "The deductible is $500.",
		},
		{
			name: "first letter capitalized",
			in:   "the policy covers maternity",
			want: "The policy covers maternity.",
		},
		{
			name: "terminal punctuation preserved",
			in:   "Does the policy cover dental?",
			want: "Does the policy cover dental?",
		},
		{
			name: "clean input untouched",
			in:   "The grace period is 30 days.",
			want: "The grace period is 30 days.",
		},
		{
			name: "only boilerplate becomes empty",
			in:   "Based on the provided document context,",
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CleanAnswer(tc.in)
			assert.Equal(t, tc.want, got)
			// a second pass must not change anything
			assert.Equal(t, got, CleanAnswer(got))
		})
	}
}

func TestGenerateAnswer(t *testing.T) {
	llm := &scriptedGenerator{response: "based on the provided document context, the grace period is thirty days"}
	g := NewAnswerGenerator(llm, GenerateOptions{})
	chunks := []Match{{
		Content:  "A grace period of thirty days is provided.",
		Metadata: map[string]any{"page_number": 2},
	}}

	answer, err := g.GenerateAnswer(context.Background(), "What is the grace period?", chunks)

	require.NoError(t, err)
	assert.Equal(t, "The grace period is thirty days.", answer)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "What is the grace period?")
	assert.Contains(t, llm.prompts[0], "A grace period of thirty days is provided.")
	assert.Contains(t, llm.prompts[0], "(Page 2)")
}

func TestGenerateAnswer_DefaultsApplied(t *testing.T) {
	llm := &scriptedGenerator{response: "fine"}
	g := NewAnswerGenerator(llm, GenerateOptions{})

	_, err := g.GenerateAnswer(context.Background(), "q", nil)

	require.NoError(t, err)
	require.Len(t, llm.opts, 1)
	assert.InDelta(t, 0.1, llm.opts[0].Temperature, 1e-9)
	assert.Equal(t, 4000, llm.opts[0].MaxTokens)
	assert.InDelta(t, 0.9, llm.opts[0].TopP, 1e-9)
	assert.Equal(t, 40, llm.opts[0].TopK)
}

func TestGenerateAnswer_EmptyAfterCleaning(t *testing.T) {
	llm := &scriptedGenerator{response: "  Based on the provided document context,  "}
	g := NewAnswerGenerator(llm, GenerateOptions{})

	_, err := g.GenerateAnswer(context.Background(), "q", nil)

	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestGenerateAnswer_BackendFailure(t *testing.T) {
	llm := &scriptedGenerator{err: errors.New("backend down")}
	g := NewAnswerGenerator(llm, GenerateOptions{})

	_, err := g.GenerateAnswer(context.Background(), "q", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate answer failed")
}

func TestExtractStructuredDecision_ParsesJSON(t *testing.T) {
	llm := &scriptedGenerator{response: `Here is my analysis:
{"decision": "approved", "amount": 1500.5, "justification": "covered under the surgical benefit", "clauses_used": ["Section 2.1"], "confidence_score": 0.92}`}
	g := NewAnswerGenerator(llm, GenerateOptions{Temperature: 0.7})

	result, err := g.ExtractStructuredDecision(context.Background(), "Is knee surgery covered?", nil)

	require.NoError(t, err)
	assert.True(t, result.Structured)
	assert.Equal(t, "approved", result.Decision)
	require.NotNil(t, result.Amount)
	assert.InDelta(t, 1500.5, *result.Amount, 1e-9)
	assert.Equal(t, "covered under the surgical benefit", result.Justification)
	assert.Equal(t, []string{"Section 2.1"}, result.ClausesUsed)
	assert.InDelta(t, 0.92, result.ConfidenceScore, 1e-9)

	// structured extraction pins temperature down regardless of config
	require.Len(t, llm.opts, 1)
	assert.InDelta(t, 0.1, llm.opts[0].Temperature, 1e-9)
}

func TestExtractStructuredDecision_MissingDecisionDefaults(t *testing.T) {
	llm := &scriptedGenerator{response: `{"amount": null, "confidence_score": 0.5}`}
	g := NewAnswerGenerator(llm, GenerateOptions{})

	result, err := g.ExtractStructuredDecision(context.Background(), "q", nil)

	require.NoError(t, err)
	assert.True(t, result.Structured)
	assert.Equal(t, "unknown", result.Decision)
	assert.Nil(t, result.Amount)
}

func TestExtractStructuredDecision_FallbackOnUnparseableOutput(t *testing.T) {
	llm := &scriptedGenerator{response: "I cannot produce JSON for this."}
	g := NewAnswerGenerator(llm, GenerateOptions{})
	chunks := []Match{
		{Content: "clause one"},
		{Content: "clause two"},
	}

	result, err := g.ExtractStructuredDecision(context.Background(), "q", chunks)

	require.NoError(t, err)
	assert.False(t, result.Structured)
	assert.Equal(t, "processed", result.Decision)
	assert.Equal(t, "I cannot produce JSON for this.", result.Justification)
	assert.Equal(t, []string{"Chunk 0", "Chunk 1"}, result.ClausesUsed)
	assert.InDelta(t, 0.8, result.ConfidenceScore, 1e-9)
}

func TestPrepareContext(t *testing.T) {
	chunks := []Match{
		{Content: "First section.", Metadata: map[string]any{"page_number": 1}},
		{Content: "Second section."},
	}

	got := prepareContext(chunks)

	assert.Contains(t, got, "Document Section:\nFirst section.\n(Page 1)")
	assert.Contains(t, got, "Document Section:\nSecond section.")
	assert.Equal(t, 1, strings.Count(got, "\n---\n"))
}
