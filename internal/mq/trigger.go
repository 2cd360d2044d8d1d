package mq

import (
	"context"
	"fmt"
	"log/slog"
)

// Kicker запрашивает внеочередной цикл (scheduler.Trigger).
type Kicker interface {
	Kick() bool
}

// TriggerHandler обрабатывает flow.trigger: вызывает Kick.
// Сообщения другого типа и битые payload отклоняются в DLQ.
func TriggerHandler(k Kicker, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(_ context.Context, msg *Message) error {
		if msg.Type != MessageTypeFlowTrigger {
			return fmt.Errorf("%w: unexpected message type %q", ErrReject, msg.Type)
		}

		payload, err := DecodePayload[FlowTriggerPayload](msg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrReject, err)
		}

		if k.Kick() {
			logger.Info("cycle requested", "message_id", msg.ID, "reason", payload.Reason)
		} else {
			logger.Debug("cycle already requested, trigger coalesced", "message_id", msg.ID)
		}
		return nil
	}
}
