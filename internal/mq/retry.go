package mq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MaxRetries — сколько раз сообщение возвращается в booking_queue
// перед отправкой в DLQ.
const MaxRetries = 3

// Заголовки, из которых читается счётчик повторов.
const (
	HeaderDeath      = "x-death"
	HeaderRetryCount = "x-retry-count"
)

// Режимы подсчёта повторов.
const (
	RetryModeHeader = "header"
	RetryModeDeath  = "x-death"
)

// RetryStrategy определяет, откуда берётся счётчик повторов
// и как сообщение возвращается в основную очередь.
type RetryStrategy interface {
	// RetryCount возвращает число уже выполненных повторов (0 для первой доставки).
	RetryCount(d amqp.Delivery) int

	// Requeue возвращает сообщение в booking_queue для следующей попытки.
	Requeue(ctx context.Context, ch Channel, d amqp.Delivery) error
}

// NewRetryStrategy возвращает стратегию по имени режима.
// Пустой режим — RetryModeHeader.
func NewRetryStrategy(mode string) (RetryStrategy, error) {
	switch mode {
	case "", RetryModeHeader:
		return HeaderStrategy{}, nil
	case RetryModeDeath:
		return DeathStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRetryMode, mode)
	}
}

// DeathStrategy читает счётчик из x-death, который заполняет брокер
// при dead-letter маршрутизации. Requeue — nack с requeue.
//
// RabbitMQ не создаёт x-death при nack с requeue, поэтому стратегия
// ограничивает повторы только вместе с петлёй через dead-letter exchange,
// настроенной на стороне брокера (broker.dlx_retry_loop).
type DeathStrategy struct{}

// RetryCount возвращает count из первой записи x-death.
func (DeathStrategy) RetryCount(d amqp.Delivery) int {
	return deathCount(d.Headers)
}

// Requeue отклоняет сообщение с requeue=true.
func (DeathStrategy) Requeue(_ context.Context, _ Channel, d amqp.Delivery) error {
	return d.Nack(false, true)
}

// HeaderStrategy ведёт счётчик в заголовке x-retry-count.
//
// RabbitMQ не дописывает x-death при nack с requeue, поэтому повтор
// выполняется публикацией копии с увеличенным счётчиком и ack оригинала.
type HeaderStrategy struct{}

// RetryCount возвращает максимум из x-retry-count и x-death.
func (HeaderStrategy) RetryCount(d amqp.Delivery) int {
	return max(headerInt(d.Headers, HeaderRetryCount), deathCount(d.Headers))
}

// Requeue публикует копию в booking_queue и подтверждает оригинал.
// Если публикация не удалась — откатывается на nack с requeue.
func (s HeaderStrategy) Requeue(ctx context.Context, ch Channel, d amqp.Delivery) error {
	next := s.RetryCount(d) + 1

	headers := copyHeaders(d.Headers)
	headers[HeaderRetryCount] = int32(next)

	err := ch.PublishWithContext(ctx, ExchangeDefault, string(QueueBooking), false, false, republishing(d, headers))
	if err != nil {
		if nackErr := d.Nack(false, true); nackErr != nil {
			return errors.Join(fmt.Errorf("republish: %w", err), fmt.Errorf("nack: %w", nackErr))
		}
		return fmt.Errorf("republish with retry header (fell back to requeue): %w", err)
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("ack original after republish: %w", err)
	}

	return nil
}

// republishing строит Publishing из доставки с новыми заголовками.
func republishing(d amqp.Delivery, headers amqp.Table) amqp.Publishing {
	deliveryMode := d.DeliveryMode
	if deliveryMode == 0 {
		deliveryMode = amqp.Persistent
	}

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   d.ContentType,
		DeliveryMode:  deliveryMode,
		CorrelationId: d.CorrelationId,
		MessageId:     d.MessageId,
		Timestamp:     d.Timestamp,
		Type:          d.Type,
		Body:          d.Body,
	}
}

// copyHeaders копирует заголовки без x-death: у копии своя история.
func copyHeaders(src amqp.Table) amqp.Table {
	dst := amqp.Table{}
	for k, v := range src {
		if k == HeaderDeath {
			continue
		}
		dst[k] = v
	}
	return dst
}

// firstDeath возвращает первую (самую свежую) запись x-death.
// Брокер присылает записи как amqp.Table, после перекодирования они
// приходят как map[string]any.
func firstDeath(headers amqp.Table) map[string]any {
	deaths, ok := headers[HeaderDeath].([]any)
	if !ok || len(deaths) == 0 {
		return nil
	}

	switch first := deaths[0].(type) {
	case amqp.Table:
		return first
	case map[string]any:
		return first
	default:
		return nil
	}
}

// deathCount возвращает count первой записи x-death.
func deathCount(headers amqp.Table) int {
	return toInt(firstDeath(headers)["count"])
}

// deathReason возвращает reason первой записи x-death (rejected, expired, ...).
func deathReason(headers amqp.Table) string {
	reason, _ := firstDeath(headers)["reason"].(string)
	return reason
}

func headerInt(headers amqp.Table, key string) int {
	v, ok := headers[key]
	if !ok {
		return 0
	}
	return toInt(v)
}

// toInt приводит числовые типы AMQP таблиц к int. Отрицательные значения — 0.
func toInt(v any) int {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case float32:
		n = int64(x)
	case float64:
		n = int64(x)
	default:
		return 0
	}

	if n < 0 {
		return 0
	}
	return int(n)
}
