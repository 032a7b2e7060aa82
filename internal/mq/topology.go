package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue — тип для имени очереди.
type Queue string

// Очереди.
const (
	QueueBooking    Queue = "booking_queue"
	QueueBookingDLQ Queue = "booking_dlq"
)

// ExchangeDefault — default exchange: routing key совпадает с именем очереди.
const ExchangeDefault = ""

// Аргументы dead-letter маршрутизации.
const (
	argDeadLetterExchange   = "x-dead-letter-exchange"
	argDeadLetterRoutingKey = "x-dead-letter-routing-key"
)

// queueSpec — описание очереди для объявления.
type queueSpec struct {
	name Queue
	args amqp.Table
}

// bookingTopology — очереди в порядке объявления.
// Параметры фиксированы: повторное объявление с ними же — no-op на стороне брокера.
func bookingTopology() []queueSpec {
	return []queueSpec{
		// booking_queue — отклонённые без requeue сообщения уходят в DLQ как есть
		{QueueBooking, amqp.Table{
			argDeadLetterExchange:   ExchangeDefault,
			argDeadLetterRoutingKey: string(QueueBookingDLQ),
		}},

		// booking_dlq — без специальных аргументов
		{QueueBookingDLQ, nil},
	}
}

// DeclareTopology идемпотентно объявляет booking_queue и booking_dlq.
// Обе очереди durable, не exclusive, не auto-delete.
func DeclareTopology(ch Channel) error {
	for _, q := range bookingTopology() {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Carpooling RabbitMQ Topology:

    (default exchange)
    ├── booking_queue [routing: booking_queue]
    │       Consumer: carpooling-worker (manual ack, prefetch 1)
    │       DLX: "" → booking_dlq
    └── booking_dlq [routing: booking_dlq]
            Manual processing
  `
}
