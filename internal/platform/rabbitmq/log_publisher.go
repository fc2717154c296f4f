package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"docquery/internal/model"
)

// LogPublisher ships query and document processing logs to durable queues so
// persistence stays off the query path.
type LogPublisher struct {
	conn             *amqp.Connection
	queryLogQueue    string
	documentLogQueue string
}

func NewLogPublisher(conn *amqp.Connection, queryLogQueue, documentLogQueue string) *LogPublisher {
	return &LogPublisher{
		conn:             conn,
		queryLogQueue:    queryLogQueue,
		documentLogQueue: documentLogQueue,
	}
}

func (p *LogPublisher) PublishQueryLog(ctx context.Context, entry model.QueryLog) error {
	return p.publish(ctx, p.queryLogQueue, entry)
}

func (p *LogPublisher) PublishDocumentLog(ctx context.Context, entry model.DocumentProcessingLog) error {
	return p.publish(ctx, p.documentLogQueue, entry)
}

func (p *LogPublisher) publish(ctx context.Context, queueName string, payload any) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal log payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish log failed: %w", err)
	}
	return nil
}
