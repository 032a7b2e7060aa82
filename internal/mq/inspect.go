package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueStats — состояние очереди.
type QueueStats struct {
	Queue     Queue `json:"queue"`
	Messages  int   `json:"messages"`
	Consumers int   `json:"consumers"`
}

// DeadLetter — сообщение из DLQ для ручного разбора.
type DeadLetter struct {
	MessageID  string               `json:"message_id"`
	RetryCount int                  `json:"retry_count"`
	Reason     string               `json:"reason,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
	Event      *BookingCreatedEvent `json:"event,omitempty"`
	Body       string               `json:"body"`
}

// Inspector — операции над DLQ для операторов.
// Worker из DLQ не читает, это делают только Inspector и люди.
type Inspector struct {
	broker Broker
	logger *slog.Logger
}

// NewInspector создаёт новый Inspector.
func NewInspector(broker Broker, logger *slog.Logger) *Inspector {
	if broker == nil {
		broker = NullBroker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{broker: broker, logger: logger}
}

// withChannel открывает канал на время fn и закрывает его на любом пути.
func (i *Inspector) withChannel(fn func(ch Channel) error) error {
	ch, err := i.broker.CreateChannel()
	if err != nil {
		return err
	}
	defer func() {
		if err := ch.Close(); err != nil {
			i.logger.Debug("failed to close inspector channel", "error", err)
		}
	}()

	if err := DeclareTopology(ch); err != nil {
		return err
	}

	return fn(ch)
}

// Stats возвращает глубину booking_queue и booking_dlq.
func (i *Inspector) Stats(_ context.Context) ([]QueueStats, error) {
	var stats []QueueStats

	err := i.withChannel(func(ch Channel) error {
		for _, q := range []Queue{QueueBooking, QueueBookingDLQ} {
			info, err := ch.QueueDeclarePassive(string(q), true, false, false, false, nil)
			if err != nil {
				return fmt.Errorf("inspect queue %s: %w", q, err)
			}
			stats = append(stats, QueueStats{
				Queue:     q,
				Messages:  info.Messages,
				Consumers: info.Consumers,
			})
		}
		return nil
	})

	return stats, err
}

// DLQDepth возвращает количество сообщений в booking_dlq.
func (i *Inspector) DLQDepth(ctx context.Context) (int, error) {
	stats, err := i.Stats(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range stats {
		if s.Queue == QueueBookingDLQ {
			return s.Messages, nil
		}
	}
	return 0, nil
}

// Peek возвращает до limit сообщений из DLQ, не удаляя их.
// Сообщения удерживаются неподтверждёнными и в конце возвращаются через nack.
func (i *Inspector) Peek(_ context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 10
	}

	var letters []DeadLetter

	err := i.withChannel(func(ch Channel) error {
		var held []amqp.Delivery
		defer func() {
			for _, d := range held {
				if err := d.Nack(false, true); err != nil {
					i.logger.Warn("failed to return peeked message", "message_id", d.MessageId, "error", err)
				}
			}
		}()

		for len(held) < limit {
			d, ok, err := ch.Get(string(QueueBookingDLQ), false)
			if err != nil {
				return fmt.Errorf("get from %s: %w", QueueBookingDLQ, err)
			}
			if !ok {
				break
			}
			held = append(held, d)
			letters = append(letters, deadLetterFromDelivery(d))
		}
		return nil
	})

	return letters, err
}

// Replay переносит до limit сообщений из DLQ в booking_queue со сброшенным счётчиком.
// Возвращает число перенесённых сообщений.
func (i *Inspector) Replay(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 10
	}

	replayed := 0

	err := i.withChannel(func(ch Channel) error {
		for replayed < limit {
			d, ok, err := ch.Get(string(QueueBookingDLQ), false)
			if err != nil {
				return fmt.Errorf("get from %s: %w", QueueBookingDLQ, err)
			}
			if !ok {
				return nil
			}

			headers := copyHeaders(d.Headers)
			delete(headers, HeaderRetryCount)

			if err := ch.PublishWithContext(ctx, ExchangeDefault, string(QueueBooking), false, false, republishing(d, headers)); err != nil {
				_ = d.Nack(false, true)
				return fmt.Errorf("republish %s: %w", d.MessageId, err)
			}
			if err := d.Ack(false); err != nil {
				return fmt.Errorf("ack replayed %s: %w", d.MessageId, err)
			}

			replayed++
			i.logger.Info("dead letter replayed", "message_id", d.MessageId)
		}
		return nil
	})

	return replayed, err
}

func deadLetterFromDelivery(d amqp.Delivery) DeadLetter {
	letter := DeadLetter{
		MessageID:  d.MessageId,
		RetryCount: HeaderStrategy{}.RetryCount(d),
		Reason:     deathReason(d.Headers),
		Timestamp:  d.Timestamp,
		Body:       string(d.Body),
	}

	if ev, err := DecodeBookingCreated(d.Body); err == nil {
		letter.Event = &ev
	}

	return letter
}
