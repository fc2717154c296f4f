package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docquery/internal/ai"
	"docquery/internal/cache"
	"docquery/internal/config"
	"docquery/internal/document"
	"docquery/internal/model"
	mysqlClient "docquery/internal/platform/mysql"
	rabbitmqClient "docquery/internal/platform/rabbitmq"
	redisClient "docquery/internal/platform/redis"
	"docquery/internal/rag"
	"docquery/internal/repository"
	"docquery/internal/worker"
)

type App struct {
	Config       *config.Config
	MySQL        *gorm.DB
	Redis        *redis.Client
	MQConn       *amqp.Connection
	LogWorker    *worker.LogPersistWorker
	LogPublisher *rabbitmqClient.LogPublisher
	QueryLogs    *repository.QueryLogRepository
	DocumentLogs *repository.DocumentLogRepository
	Pipeline     *rag.Pipeline
	Optimizer    *rag.Optimizer

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.QueryLog{}, &model.DocumentProcessingLog{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	queryLogRepo := repository.NewQueryLogRepository(mysqlDB)
	documentLogRepo := repository.NewDocumentLogRepository(mysqlDB)
	logWorker := worker.NewLogPersistWorker(
		mqConn,
		queryLogRepo,
		documentLogRepo,
		cfg.RabbitMQ.QueryLogQueue,
		cfg.RabbitMQ.DocumentLogQueue,
	)
	if err := logWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start log worker failed: %w", err)
	}
	logPublisher := rabbitmqClient.NewLogPublisher(
		mqConn,
		cfg.RabbitMQ.QueryLogQueue,
		cfg.RabbitMQ.DocumentLogQueue,
	)

	pipeline, optimizer := BuildPipeline(cfg, cache.NewRedis(
		redisCli,
		time.Duration(cfg.Retrieval.CacheTTLSeconds)*time.Second,
	))

	return &App{
		Config:       cfg,
		MySQL:        mysqlDB,
		Redis:        redisCli,
		MQConn:       mqConn,
		LogWorker:    logWorker,
		LogPublisher: logPublisher,
		QueryLogs:    queryLogRepo,
		DocumentLogs: documentLogRepo,
		Pipeline:     pipeline,
		Optimizer:    optimizer,
		StartedAt:    time.Now(),
	}, nil
}

// BuildPipeline wires the retrieval pipeline from config. Shared with
// cmd/batch, which runs without the server dependencies.
func BuildPipeline(cfg *config.Config, answerCache rag.AnswerCache) (*rag.Pipeline, *rag.Optimizer) {
	llmClient := ai.NewOpenAICompatibleClient()
	embedder := ai.NewEmbedder(llmClient, ai.EmbeddingConfig{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.EmbeddingModel,
		Dimension: cfg.LLM.EmbeddingDimension,
	})
	generator := ai.NewGenerator(llmClient, ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})

	optimizer := rag.NewOptimizer(answerCache, cfg.Retrieval.DiversityThreshold, cfg.Retrieval.MaxSelected)
	answerGen := rag.NewAnswerGenerator(generator, rag.GenerateOptions{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		TopP:        cfg.LLM.TopP,
		TopK:        cfg.LLM.TopK,
	})
	fetcher := document.NewFetcher(
		time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second,
		cfg.Fetch.MaxBytes,
	)
	chunker := rag.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)

	pipeline := rag.NewPipeline(
		fetcher,
		chunker,
		embedder,
		answerGen,
		optimizer,
		cfg.LLM.EmbeddingDimension,
		cfg.Retrieval.TopK,
		cfg.Index.Path,
	)
	return pipeline, optimizer
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.LogWorker != nil {
		a.LogWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
