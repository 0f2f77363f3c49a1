package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

const (
	// ExchangeExecutions — topic-обменник событий выполнения запросов.
	ExchangeExecutions Exchange = "megaflow.executions"

	// QueueExecutionsCompleted — durable очередь для внешних потребителей
	// (аналитика, аудит).
	QueueExecutionsCompleted Queue = "executions.completed"

	// RoutingKeyExecutionCompleted — ключ события о завершённом запросе.
	RoutingKeyExecutionCompleted RoutingKey = "execution.completed"

	// bindingAllExecutions — шаблон, покрывающий все события выполнения.
	bindingAllExecutions RoutingKey = "execution.#"
)

// Ограничения executions.completed: без потребителя очередь не растёт
// бесконечно, старые события вытесняются новыми.
const (
	ExecutionsQueueMaxLength = 100_000
	ExecutionsQueueTTL       = 24 * time.Hour
)

// executionsQueueArgs возвращает аргументы объявления executions.completed.
func executionsQueueArgs() amqp.Table {
	return amqp.Table{
		"x-max-length":  int32(ExecutionsQueueMaxLength),
		"x-message-ttl": int32(ExecutionsQueueTTL / time.Millisecond),
		"x-overflow":    "drop-head",
	}
}

// SetupTopology объявляет обменник и ограниченную durable очередь.
// Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeExecutions), // name
			amqp.ExchangeTopic,         // type
			true,                       // durable
			false,                      // auto-deleted
			false,                      // internal
			false,                      // no-wait
			nil,                        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeExecutions, err)
		}

		_, err = ch.QueueDeclare(
			string(QueueExecutionsCompleted), // name
			true,                             // durable
			false,                            // delete when unused
			false,                            // exclusive
			false,                            // no-wait
			executionsQueueArgs(),            // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueExecutionsCompleted, err)
		}

		err = ch.QueueBind(
			string(QueueExecutionsCompleted),     // queue name
			string(RoutingKeyExecutionCompleted), // routing key
			string(ExchangeExecutions),           // exchange
			false,                                // no-wait
			nil,                                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueExecutionsCompleted, ExchangeExecutions, err)
		}

		return nil
	})
}

// declareTapQueue создаёт временную exclusive очередь со всеми событиями
// выполнения. Очередь удаляется вместе с каналом.
func declareTapQueue(ch *amqp.Channel) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // name (генерирует сервер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare tap queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, string(bindingAllExecutions), string(ExchangeExecutions), false, nil); err != nil {
		return "", fmt.Errorf("bind tap queue: %w", err)
	}

	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  megaflow RabbitMQ topology:

    megaflow.executions (topic)
    ├── executions.completed [routing: execution.completed, max 100000, ttl 24h]
    │       Consumers: external (analytics, audit)
    └── <exclusive tap> [routing: execution.#]
            Consumer: megaflow executions watch
  `
}
