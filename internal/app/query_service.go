package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"docquery/internal/model"
	"docquery/internal/platform/rabbitmq"
	"docquery/internal/rag"
)

const (
	maxQuestions      = 20
	maxQuestionLength = 1000
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrTooManyQuestions = errors.New("too many questions")
)

// QueryService fronts the retrieval pipeline: validates requests, runs them
// and publishes logs asynchronously.
type QueryService struct {
	pipeline  *rag.Pipeline
	optimizer *rag.Optimizer
	publisher *rabbitmq.LogPublisher
}

func NewQueryService(pipeline *rag.Pipeline, optimizer *rag.Optimizer, publisher *rabbitmq.LogPublisher) *QueryService {
	return &QueryService{
		pipeline:  pipeline,
		optimizer: optimizer,
		publisher: publisher,
	}
}

// ProcessQueriesInput mirrors the public request: one document URL and an
// ordered question list.
type ProcessQueriesInput struct {
	DocumentURL string
	Questions   []string
}

// ProcessQueries validates the request and answers every question. The
// answer slice always matches the question order.
func (s *QueryService) ProcessQueries(ctx context.Context, input ProcessQueriesInput) ([]string, error) {
	if err := validateQuestions(input.DocumentURL, input.Questions); err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := s.pipeline.ProcessQueriesDetailed(ctx, input.DocumentURL, input.Questions)
	if err != nil {
		s.publishDocumentLog(input.DocumentURL, 0, time.Since(start), err)
		return nil, err
	}
	s.publishDocumentLog(input.DocumentURL, s.pipeline.ChunkCount(), time.Since(start), nil)

	answers := make([]string, len(results))
	for i, result := range results {
		answers[i] = result.Answer
		s.publishQueryLog(input.DocumentURL, result)
	}
	return answers, nil
}

// ProcessDecision answers a single question as a structured decision.
func (s *QueryService) ProcessDecision(ctx context.Context, documentURL, question string) (*rag.DecisionResult, error) {
	if err := validateQuestions(documentURL, []string{question}); err != nil {
		return nil, err
	}
	return s.pipeline.ProcessDecision(ctx, documentURL, question)
}

// PerformanceReport exposes the optimizer's accumulated latency stats.
func (s *QueryService) PerformanceReport() map[string]rag.OperationReport {
	return s.optimizer.PerformanceReport()
}

func validateQuestions(documentURL string, questions []string) error {
	if strings.TrimSpace(documentURL) == "" {
		return ErrInvalidInput
	}
	if len(questions) == 0 {
		return ErrInvalidInput
	}
	if len(questions) > maxQuestions {
		return ErrTooManyQuestions
	}
	for _, q := range questions {
		if strings.TrimSpace(q) == "" || len(q) > maxQuestionLength {
			return ErrInvalidInput
		}
	}
	return nil
}

func (s *QueryService) publishQueryLog(documentURL string, result rag.QueryResult) {
	if s.publisher == nil {
		return
	}
	entry := model.QueryLog{
		DocumentURL:    documentURL,
		Question:       result.Question,
		Answer:         result.Answer,
		ProcessingTime: result.Duration.Seconds(),
		Cached:         result.Cached,
		Failed:         result.Failed,
	}
	entry.SetSimilarityScores(result.Scores)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.publisher.PublishQueryLog(ctx, entry); err != nil {
		log.Printf("publish query log failed: %v", err)
	}
}

func (s *QueryService) publishDocumentLog(documentURL string, chunks int, elapsed time.Duration, procErr error) {
	if s.publisher == nil {
		return
	}
	entry := model.DocumentProcessingLog{
		DocumentURL:    documentURL,
		Status:         model.ProcessingStatusSuccess,
		ChunksCount:    chunks,
		ProcessingTime: elapsed.Seconds(),
	}
	if procErr != nil {
		entry.Status = model.ProcessingStatusError
		entry.ErrorMessage = procErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.publisher.PublishDocumentLog(ctx, entry); err != nil {
		log.Printf("publish document log failed: %v", err)
	}
}
