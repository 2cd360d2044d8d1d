package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/relay/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeFlowCompleted MessageType = "flow.completed"
	MessageTypeFlowTrigger   MessageType = "flow.trigger"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage создаёт конверт с новым ID.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// FlowCompletedPayload — результат одного flow.
type FlowCompletedPayload struct {
	RunID         uuid.UUID `json:"run_id"`
	Flow          string    `json:"flow"`
	Status        string    `json:"status"` // SUCCEEDED или FAILED
	FailedService string    `json:"failed_service,omitempty"`
	Error         string    `json:"error,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
}

// NewFlowCompletedPayload собирает payload из FlowRun.
func NewFlowCompletedPayload(run *domain.FlowRun) FlowCompletedPayload {
	return FlowCompletedPayload{
		RunID:         run.ID,
		Flow:          run.Flow,
		Status:        run.Status.String(),
		FailedService: run.FailedService,
		Error:         run.Error(),
		DurationMS:    run.Duration().Milliseconds(),
	}
}

// FlowTriggerPayload — запрос внеочередного цикла.
type FlowTriggerPayload struct {
	// Reason — произвольное пояснение для логов.
	Reason string `json:"reason,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
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

// FlowCompleted публикует результат flow в flows.completed.
func (p *Publisher) FlowCompleted(ctx context.Context, run *domain.FlowRun) error {
	msg, err := NewMessage(MessageTypeFlowCompleted, NewFlowCompletedPayload(run))
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeFlows, RoutingKeyCompleted, msg)
}

// RequestCycle публикует flow.trigger: работающий relay сразу запустит цикл.
func (p *Publisher) RequestCycle(ctx context.Context, reason string) error {
	msg, err := NewMessage(MessageTypeFlowTrigger, FlowTriggerPayload{Reason: reason})
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeFlows, RoutingKeyTrigger, msg)
}
