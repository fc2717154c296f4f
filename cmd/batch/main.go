// Command batch runs query batches from a JSON file against the retrieval
// pipeline, without the HTTP server or its backing services.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"docquery/internal/bootstrap"
	"docquery/internal/cache"
	"docquery/internal/config"
)

type batchFile struct {
	Documents []batchDocument `json:"documents"`
}

type batchDocument struct {
	URL       string   `json:"url"`
	Questions []string `json:"questions"`
}

type batchResult struct {
	ProcessedAt    time.Time             `json:"processed_at"`
	TotalDocuments int                   `json:"total_documents"`
	Results        []batchDocumentResult `json:"results"`
}

type batchDocumentResult struct {
	DocumentURL    string   `json:"document_url"`
	ProcessingTime float64  `json:"processing_time"`
	Status         string   `json:"status"`
	QuestionsCount int      `json:"questions_count,omitempty"`
	Answers        []string `json:"answers,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func main() {
	inputPath := flag.String("input", "", "path to a JSON batch file")
	outputPath := flag.String("output", "batch_results.json", "path to write results to")
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("missing -input batch file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	raw, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("read batch file failed: %v", err)
	}
	var batch batchFile
	if err := json.Unmarshal(raw, &batch); err != nil {
		log.Fatalf("decode batch file failed: %v", err)
	}

	answerCache := cache.NewMemory(
		time.Duration(cfg.Retrieval.CacheTTLSeconds)*time.Second,
		cfg.Retrieval.CacheCapacity,
	)
	pipeline, _ := bootstrap.BuildPipeline(cfg, answerCache)

	ctx := context.Background()
	result := batchResult{
		ProcessedAt:    time.Now(),
		TotalDocuments: len(batch.Documents),
	}

	for _, doc := range batch.Documents {
		log.Printf("processing %s (%d questions)", doc.URL, len(doc.Questions))
		start := time.Now()

		answers, err := pipeline.ProcessQueries(ctx, doc.URL, doc.Questions)
		docResult := batchDocumentResult{
			DocumentURL:    doc.URL,
			ProcessingTime: time.Since(start).Seconds(),
		}
		if err != nil {
			docResult.Status = "error"
			docResult.Error = err.Error()
		} else {
			docResult.Status = "success"
			docResult.QuestionsCount = len(doc.Questions)
			docResult.Answers = answers
		}
		result.Results = append(result.Results, docResult)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encode results failed: %v", err)
	}
	if err := os.WriteFile(*outputPath, out, 0o644); err != nil {
		log.Fatalf("write results failed: %v", err)
	}
	log.Printf("wrote %d results to %s", len(result.Results), *outputPath)
}
