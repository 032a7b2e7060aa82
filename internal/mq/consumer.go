package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed — брокер закрыл канал доставок (разрыв соединения или cancel).
var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// Handler обрабатывает одну доставку и сам решает ack/nack.
type Handler func(ctx context.Context, d amqp.Delivery)

// Consumer потребляет сообщения из одной очереди на одном канале.
//
// Сообщения обрабатываются строго последовательно: следующая доставка
// читается только после возврата Handler.
type Consumer struct {
	ch       Channel
	logger   *slog.Logger
	queue    Queue
	prefetch int
	tag      string

	deliveries <-chan amqp.Delivery
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue Queue

	// Prefetch — количество сообщений для предварительной загрузки (default: 1).
	Prefetch int

	// Tag — consumer tag; пустой — сгенерирует брокер.
	Tag string
}

// NewConsumer создаёт новый Consumer на переданном канале.
func NewConsumer(ch Channel, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		ch:       ch,
		logger:   logger,
		queue:    cfg.Queue,
		prefetch: prefetch,
		tag:      cfg.Tag,
	}
}

// Setup настраивает QoS и регистрирует consumer с ручным ack.
func (c *Consumer) Setup() error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := c.ch.Consume(
		string(c.queue), // queue
		c.tag,           // consumer tag
		false,           // auto-ack (ack решает handler)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.deliveries = deliveries
	c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)

	return nil
}

// Run читает доставки до отмены ctx или закрытия канала доставок.
// Отмена ctx не прерывает уже начатый вызов handler.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	if c.deliveries == nil {
		return fmt.Errorf("consumer for %s is not set up", c.queue)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case d, ok := <-c.deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}

			handler(ctx, d)
		}
	}
}
