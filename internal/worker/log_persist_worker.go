package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docquery/internal/model"
	"docquery/internal/repository"
)

// LogPersistWorker drains the log queues into MySQL.
type LogPersistWorker struct {
	conn             *amqp.Connection
	queryRepo        *repository.QueryLogRepository
	documentRepo     *repository.DocumentLogRepository
	queryLogQueue    string
	documentLogQueue string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLogPersistWorker(
	conn *amqp.Connection,
	queryRepo *repository.QueryLogRepository,
	documentRepo *repository.DocumentLogRepository,
	queryLogQueue, documentLogQueue string,
) *LogPersistWorker {
	return &LogPersistWorker{
		conn:             conn,
		queryRepo:        queryRepo,
		documentRepo:     documentRepo,
		queryLogQueue:    queryLogQueue,
		documentLogQueue: documentLogQueue,
	}
}

func (w *LogPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if err := w.consume(workerCtx, w.queryLogQueue, w.persistQueryLog); err != nil {
		cancel()
		return err
	}
	if err := w.consume(workerCtx, w.documentLogQueue, w.persistDocumentLog); err != nil {
		cancel()
		return err
	}
	return nil
}

func (w *LogPersistWorker) consume(ctx context.Context, queueName string, handle func([]byte) error) error {
	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := handle(d.Body); err != nil {
					log.Printf("worker persist %s failed: %v", queueName, err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}

func (w *LogPersistWorker) persistQueryLog(body []byte) error {
	var entry model.QueryLog
	if err := json.Unmarshal(body, &entry); err != nil {
		return fmt.Errorf("decode query log failed: %w", err)
	}
	return w.queryRepo.Create(&entry)
}

func (w *LogPersistWorker) persistDocumentLog(body []byte) error {
	var entry model.DocumentProcessingLog
	if err := json.Unmarshal(body, &entry); err != nil {
		return fmt.Errorf("decode document log failed: %w", err)
	}
	return w.documentRepo.Create(&entry)
}

func (w *LogPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
