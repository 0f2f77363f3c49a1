package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/megaflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

const (
	// MessageTypeExecutionCompleted — запрос обработан (любым исходом).
	MessageTypeExecutionCompleted MessageType = "execution.completed"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// ExecutionCompletedPayload — payload события execution.completed.
type ExecutionCompletedPayload struct {
	ExecutionID uuid.UUID              `json:"execution_id"`
	Model       string                 `json:"model"`
	Status      domain.ExecutionStatus `json:"status"`
	Streamed    bool                   `json:"streamed"`
	Error       string                 `json:"error,omitempty"`
	DurationMs  int64                  `json:"duration_ms"`
	Nodes       []domain.NodeRecord    `json:"nodes,omitempty"`
	FinishedAt  time.Time              `json:"finished_at"`
}

// NewExecutionCompletedPayload строит payload из Execution.
func NewExecutionCompletedPayload(exec *domain.Execution) ExecutionCompletedPayload {
	return ExecutionCompletedPayload{
		ExecutionID: exec.ID,
		Model:       exec.Model,
		Status:      exec.Status,
		Streamed:    exec.Streamed,
		Error:       exec.Error,
		DurationMs:  exec.Duration().Milliseconds(),
		Nodes:       exec.Nodes,
		FinishedAt:  exec.FinishedAt,
	}
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishExecutionCompleted публикует событие о завершённом запросе.
func (p *Publisher) PublishExecutionCompleted(ctx context.Context, exec *domain.Execution) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeExecutionCompleted,
		Payload:   NewExecutionCompletedPayload(exec),
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeExecutions, RoutingKeyExecutionCompleted, msg)
}

// RecordExecution реализует orchestrator.Recorder.
func (p *Publisher) RecordExecution(ctx context.Context, exec *domain.Execution) error {
	return p.PublishExecutionCompleted(ctx, exec)
}
