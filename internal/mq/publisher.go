package mq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Carpooling/internal/telemetry"
)

// PublishResult — итог публикации. Вызывающий вправе его игнорировать.
type PublishResult int

const (
	// PublishOK — брокер принял сообщение.
	PublishOK PublishResult = iota

	// PublishSkipped — брокер или канал недоступен, публикация не выполнялась.
	PublishSkipped

	// PublishFailed — ошибка объявления топологии, сериализации или публикации.
	PublishFailed
)

// String возвращает метку для логов и метрик.
func (r PublishResult) String() string {
	switch r {
	case PublishOK:
		return "ok"
	case PublishSkipped:
		return "skipped"
	case PublishFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BookingEventPublisher — контракт для use case бронирования.
type BookingEventPublisher interface {
	PublishBookingCreated(ctx context.Context, bookingID, rideID, passengerID uuid.UUID, passengerEmail string) PublishResult
}

// Publisher публикует BookingCreated в booking_queue.
//
// Публикация best-effort: без confirm'ов и outbox. Любая ошибка
// (включая панику) логируется и превращается в PublishResult.
type Publisher struct {
	broker  Broker
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// PublisherConfig — конфигурация Publisher.
type PublisherConfig struct {
	Broker Broker
	Logger *slog.Logger

	// Timeout ограничивает объявление и публикацию (default: 5s).
	Timeout time.Duration
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(cfg PublisherConfig) *Publisher {
	broker := cfg.Broker
	if broker == nil {
		broker = NullBroker{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Publisher{
		broker:  broker,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// PublishBookingCreated публикует событие о созданном бронировании.
// Никогда не паникует и не возвращает ошибку.
func (p *Publisher) PublishBookingCreated(ctx context.Context, bookingID, rideID, passengerID uuid.UUID, passengerEmail string) (result PublishResult) {
	logger := p.logger.With("booking_id", bookingID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while publishing booking created event", "panic", r)
			result = PublishFailed
		}
		telemetry.EventsPublished.WithLabelValues(result.String()).Inc()
	}()

	if !p.broker.IsConnected() {
		logger.Warn("RabbitMQ not connected, booking event skipped")
		return PublishSkipped
	}

	ch, err := p.broker.CreateChannel()
	if err != nil || ch == nil {
		logger.Warn("RabbitMQ channel unavailable, booking event skipped", "error", err)
		return PublishSkipped
	}
	defer func() {
		if err := ch.Close(); err != nil {
			logger.Debug("failed to close publisher channel", "error", err)
		}
	}()

	event := NewBookingCreatedEvent(bookingID, rideID, passengerID, passengerEmail, p.now())
	if err := p.publish(ctx, ch, event); err != nil {
		logger.Error("failed to publish booking created event", "error", err)
		return PublishFailed
	}

	logger.Info("booking created event published", "queue", QueueBooking)
	return PublishOK
}

// publish объявляет топологию и отправляет событие через default exchange.
func (p *Publisher) publish(ctx context.Context, ch Channel, event BookingCreatedEvent) error {
	if err := DeclareTopology(ch); err != nil {
		return err
	}

	body, err := event.Encode()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		ExchangeDefault,      // exchange
		string(QueueBooking), // routing key
		false,                // mandatory
		false,                // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
			MessageId:    event.BookingID.String(),
			Type:         EventTypeBookingCreated,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", QueueBooking, err)
	}

	return nil
}

var _ BookingEventPublisher = (*Publisher)(nil)
