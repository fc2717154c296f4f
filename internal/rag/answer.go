package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var ErrEmptyAnswer = errors.New("answer was empty after cleaning")

// GenerateOptions are passed through to the generation backend.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int
}

// TextGenerator produces free-form text for a prompt. May be slow; MaxTokens
// is assumed to be a hard cap.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// DecisionResult is the structured output of a decision query. Structured is
// false when the model response could not be parsed as JSON and the result
// carries the raw text instead.
type DecisionResult struct {
	Decision        string   `json:"decision"`
	Amount          *float64 `json:"amount"`
	Justification   string   `json:"justification"`
	ClausesUsed     []string `json:"clauses_used"`
	ConfidenceScore float64  `json:"confidence_score"`
	Structured      bool     `json:"structured"`
}

// AnswerGenerator builds grounding prompts from selected chunks, invokes the
// generation backend, and sanitizes the returned text.
type AnswerGenerator struct {
	llm  TextGenerator
	opts GenerateOptions
}

func NewAnswerGenerator(llm TextGenerator, opts GenerateOptions) *AnswerGenerator {
	if opts.Temperature <= 0 {
		opts.Temperature = 0.1
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4000
	}
	if opts.TopP <= 0 {
		opts.TopP = 0.9
	}
	if opts.TopK <= 0 {
		opts.TopK = 40
	}
	return &AnswerGenerator{llm: llm, opts: opts}
}

// GenerateAnswer produces a cleaned, grounded answer for the question.
func (g *AnswerGenerator) GenerateAnswer(ctx context.Context, question string, contextChunks []Match) (string, error) {
	prompt := answerPrompt(question, prepareContext(contextChunks))

	raw, err := g.llm.Generate(ctx, prompt, g.opts)
	if err != nil {
		return "", fmt.Errorf("generate answer failed: %w", err)
	}

	cleaned := CleanAnswer(strings.TrimSpace(raw))
	if cleaned == "" {
		return "", ErrEmptyAnswer
	}
	return cleaned, nil
}

// ExtractStructuredDecision asks the model for a JSON decision and parses it
// strictly, degrading to an unstructured result on parse failure.
func (g *AnswerGenerator) ExtractStructuredDecision(ctx context.Context, question string, contextChunks []Match) (*DecisionResult, error) {
	prompt := decisionPrompt(question, prepareContext(contextChunks))

	opts := g.opts
	opts.Temperature = 0.1 // structured output wants determinism

	raw, err := g.llm.Generate(ctx, prompt, opts)
	if err != nil {
		return nil, fmt.Errorf("generate decision failed: %w", err)
	}
	raw = strings.TrimSpace(raw)

	if result, ok := parseDecision(raw); ok {
		return result, nil
	}
	clauses := make([]string, len(contextChunks))
	for i := range contextChunks {
		clauses[i] = fmt.Sprintf("Chunk %d", i)
	}
	return &DecisionResult{
		Decision:        "processed",
		Justification:   raw,
		ClausesUsed:     clauses,
		ConfidenceScore: 0.8,
		Structured:      false,
	}, nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

func parseDecision(raw string) (*DecisionResult, bool) {
	text := raw
	if m := jsonObject.FindString(text); m != "" {
		text = m
	}
	var parsed struct {
		Decision        string   `json:"decision"`
		Amount          *float64 `json:"amount"`
		Justification   string   `json:"justification"`
		ClausesUsed     []string `json:"clauses_used"`
		ConfidenceScore float64  `json:"confidence_score"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}
	decision := parsed.Decision
	if decision == "" {
		decision = "unknown"
	}
	return &DecisionResult{
		Decision:        decision,
		Amount:          parsed.Amount,
		Justification:   parsed.Justification,
		ClausesUsed:     parsed.ClausesUsed,
		ConfidenceScore: parsed.ConfidenceScore,
		Structured:      true,
	}, true
}

// prepareContext joins chunks into a delimited context block. Chunk ids never
// appear here so the model cannot echo them back.
func prepareContext(chunks []Match) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		var b strings.Builder
		b.WriteString("Document Section:\n")
		b.WriteString(chunk.Content)
		b.WriteString("\n")
		if page := pageNumberFrom(chunk.Metadata); page > 0 {
			fmt.Fprintf(&b, "(Page %d)\n", page)
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n---\n")
}

func answerPrompt(question, context string) string {
	return fmt.Sprintf(`You are an expert document analyst. Based on the provided document context, answer the following question accurately and concisely.

Question: %s

Document Context:
%s

Instructions:
1. Answer based ONLY on the information provided in the context
2. Provide a direct, factual answer in 1-3 sentences maximum
3. Do NOT use bullet points, lists, or extensive explanations
4. Do NOT mention "Based on the provided document context" or similar phrases
5. Do NOT mention chunk numbers, sections, or any document structure references
6. Start your answer directly with the factual information
7. Be concise and professional
8. If multiple conditions exist, summarize them in flowing sentences, not lists
9. Focus on the key facts that directly answer the question

Answer:`, question, context)
}

func decisionPrompt(question, context string) string {
	return fmt.Sprintf(`You are an expert policy analyzer. Based on the provided document context, analyze the question and provide a structured decision.

Question: %s

Document Context:
%s

Instructions:
1. Analyze the question and context to make a decision
2. Provide a structured JSON response with the following format:
{
    "decision": "approved/rejected/pending/not_applicable",
    "amount": null_or_numeric_value,
    "justification": "detailed_explanation_with_specific_references",
    "clauses_used": ["list", "of", "relevant", "clause", "references"],
    "confidence_score": 0.0_to_1.0
}

3. Base your decision ONLY on the provided context
4. Reference specific clauses or sections in your justification
5. Be precise and professional
6. Do not include any chunk numbers or identifiers in the JSON response
7. Do not mention or reference chunk numbers or metadata directly
8. Focus only on the actual policy content and rules

JSON Response:`, question, context)
}

var verbosePrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^based on the provided document context,?\s*`),
	regexp.MustCompile(`(?i)^according to the document,?\s*`),
	regexp.MustCompile(`(?i)^according to the policy,?\s*`),
	regexp.MustCompile(`(?i)^according to the provided document context,?\s*`),
	regexp.MustCompile(`(?i)^the document states that\s*`),
	regexp.MustCompile(`(?i)^from the provided context,?\s*`),
	regexp.MustCompile(`(?i)^in the document,?\s*`),
	regexp.MustCompile(`(?i)^as per the policy,?\s*`),
	regexp.MustCompile(`(?i)^the policy states that\s*`),
}

var chunkReferences = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*this is stated in chunk \d+.*?\.?`),
	regexp.MustCompile(`(?i)\s*as mentioned in chunk \d+.*?\.?`),
	regexp.MustCompile(`(?i)\s*and reiterated in chunk \d+.*?\.?`),
	regexp.MustCompile(`(?i)\s*\(chunk \d+.*?\)`),
	regexp.MustCompile(`(?i)\s*according to chunk \d+.*?\.?`),
	regexp.MustCompile(`(?i)\s*chunk \d+ (?:states|mentions|indicates).*?\.?`),
	regexp.MustCompile(`(?i)\s*based on chunk \d+.*?\.?`),
	regexp.MustCompile(`(?i)\s*in chunk \d+.*?\.?`),
	regexp.MustCompile(`(?i)\s*from chunk \d+.*?\.?`),
	regexp.MustCompile(`(?i)\s*chunk \d+[:\-\s]`),
}

var (
	bulletMarker    = regexp.MustCompile(`\n?\s*[*\-•]\s+`)
	numberedMarker  = regexp.MustCompile(`\n?\s*\d+\.\s+`)
	sectionAsPer    = regexp.MustCompile(`(?i)\s*as per section [a-zA-Z0-9.]+\.?`)
	sectionUnder    = regexp.MustCompile(`(?i)\s*under section [a-zA-Z0-9.]+\.?`)
	repeatedPeriods = regexp.MustCompile(`\.+`)
)

// CleanAnswer applies the deterministic cleaning pass to raw model output.
// Steps run in a fixed order; the pass is idempotent on already-clean text.
func CleanAnswer(text string) string {
	cleaned := text

	for _, pattern := range verbosePrefixes {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	for _, pattern := range chunkReferences {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}

	// Flatten list markers into flowing text.
	cleaned = bulletMarker.ReplaceAllString(cleaned, " ")
	cleaned = numberedMarker.ReplaceAllString(cleaned, " ")

	cleaned = sectionAsPer.ReplaceAllString(cleaned, "")
	cleaned = sectionUnder.ReplaceAllString(cleaned, "")

	cleaned = strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))
	cleaned = repeatedPeriods.ReplaceAllString(cleaned, ".")
	cleaned = strings.Trim(cleaned, " .,")

	if cleaned == "" {
		return ""
	}
	runes := []rune(cleaned)
	if !unicode.IsUpper(runes[0]) {
		runes[0] = unicode.ToUpper(runes[0])
		cleaned = string(runes)
	}
	if !strings.HasSuffix(cleaned, ".") && !strings.HasSuffix(cleaned, "!") && !strings.HasSuffix(cleaned, "?") {
		cleaned += "."
	}
	return cleaned
}
