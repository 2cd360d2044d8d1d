package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeFlows Exchange = "relay.flows"
	ExchangeDLQ   Exchange = "relay.dlq"
)

// Queues.
const (
	QueueFlowsCompleted Queue = "flows.completed"
	QueueFlowsTrigger   Queue = "flows.trigger"
	QueueDLQTriggers    Queue = "dlq.triggers"
)

// Routing keys.
const (
	RoutingKeyCompleted   RoutingKey = "completed"
	RoutingKeyTrigger     RoutingKey = "trigger"
	RoutingKeyDLQTriggers RoutingKey = "triggers"
)

// binding — очередь, привязанная к обменнику.
type binding struct {
	queue      Queue
	exchange   Exchange
	routingKey RoutingKey
	args       amqp.Table
}

// topology — полное описание топологии relay.
var topology = []binding{
	// flows.completed — результаты flows для внешних потребителей
	{QueueFlowsCompleted, ExchangeFlows, RoutingKeyCompleted, nil},

	// flows.trigger — внеочередной запуск цикла; битые сообщения уходят в DLQ
	{QueueFlowsTrigger, ExchangeFlows, RoutingKeyTrigger, amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTriggers),
	}},

	{QueueDLQTriggers, ExchangeDLQ, RoutingKeyDLQTriggers, nil},
}

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентна.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeFlows, ExchangeDLQ} {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, b := range topology {
			if _, err := ch.QueueDeclare(
				string(b.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				b.args,          // arguments
			); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			if err := ch.QueueBind(
				string(b.queue),
				string(b.routingKey),
				string(b.exchange),
				false,
				nil,
			); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логов и `relay validate`.
func TopologyInfo() string {
	return `
  relay RabbitMQ topology:

    relay.flows (direct)
    ├── flows.completed [routing: completed]
    │       Producer: relay (one message per flow run)
    └── flows.trigger [routing: trigger]
            Consumer: relay (starts a cycle immediately)
            DLQ: dlq.triggers

    relay.dlq (direct)
    └── dlq.triggers [routing: triggers]
            Manual processing
`
}
