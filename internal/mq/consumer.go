package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrReject — обработчик отклоняет сообщение без повтора (оно уходит в DLQ).
var ErrReject = errors.New("message rejected")

// Handler обрабатывает сообщение.
//
// nil — ack. Ошибка, оборачивающая ErrReject, — nack без requeue.
// Любая другая ошибка — nack с requeue.
type Handler func(ctx context.Context, msg *Message) error

// Consumer потребляет сообщения из очереди.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue    Queue
	Handler  Handler
	Prefetch int // default: 1
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", string(cfg.Queue)),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run потребляет сообщения, пока ctx не отменён.
// После разрыва соединения ждёт переподключения и продолжает.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to start consuming", "error", err)
			if err := c.conn.waitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consumer started")

		if err := c.drain(ctx, deliveries); err != nil {
			return err
		}

		c.logger.Warn("deliveries channel closed, waiting for reconnect")
		if err := c.conn.waitReconnect(ctx); err != nil {
			return err
		}
	}
}

// subscribe выставляет prefetch и начинает потребление.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := c.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		var err error
		deliveries, err = ch.Consume(
			string(c.queue),
			"",    // consumer tag
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	})

	return deliveries, err
}

// drain обрабатывает сообщения до закрытия канала (nil) или отмены ctx.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.settle(raw, c.dispatch(ctx, raw.Body))
		}
	}
}

// dispatch декодирует конверт и вызывает обработчик.
func (c *Consumer) dispatch(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: malformed envelope: %v", ErrReject, err)
	}

	c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type)

	return c.handler(ctx, &msg)
}

// settle подтверждает или отклоняет сообщение по результату обработки.
func (c *Consumer) settle(raw amqp.Delivery, err error) {
	var settleErr error

	switch {
	case err == nil:
		settleErr = raw.Ack(false)
	case errors.Is(err, ErrReject):
		c.logger.Error("message rejected", "message_id", raw.MessageId, "error", err)
		settleErr = raw.Nack(false, false)
	default:
		c.logger.Error("handler failed, requeueing", "message_id", raw.MessageId, "error", err)
		settleErr = raw.Nack(false, true)
	}

	if settleErr != nil {
		c.logger.Warn("failed to settle message", "message_id", raw.MessageId, "error", settleErr)
	}
}

// DecodePayload разбирает payload сообщения в T.
func DecodePayload[T any](msg *Message) (T, error) {
	var result T
	if len(msg.Payload) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}
