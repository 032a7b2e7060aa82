package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Carpooling/internal/mq"
	"github.com/shaiso/Carpooling/internal/telemetry"
)

// Outcome — итог обработки одного сообщения.
type Outcome int

const (
	// OutcomeAcked — уведомление отправлено, сообщение подтверждено.
	OutcomeAcked Outcome = iota

	// OutcomeRequeued — отправка не удалась, сообщение возвращено в booking_queue.
	OutcomeRequeued

	// OutcomeDeadLettered — бюджет повторов исчерпан, сообщение ушло в booking_dlq.
	OutcomeDeadLettered
)

// String возвращает метку для логов и метрик.
func (o Outcome) String() string {
	switch o {
	case OutcomeAcked:
		return "acked"
	case OutcomeRequeued:
		return "requeued"
	case OutcomeDeadLettered:
		return "dead_lettered"
	default:
		return "unknown"
	}
}

// handle проводит сообщение через Received → Dispatching → {Acked | Requeued | DeadLettered}.
//
// Отправка выполняется на контексте, отвязанном от отмены цикла:
// начатое уведомление при остановке завершается или упирается в handleTimeout.
func (w *Worker) handle(ctx context.Context, ch mq.Channel, d amqp.Delivery) Outcome {
	retryCount := w.strategy.RetryCount(d)
	logger := w.logger.With(
		"message_id", d.MessageId,
		"delivery_tag", d.DeliveryTag,
		"retry_count", retryCount,
	)

	err := w.dispatch(context.WithoutCancel(ctx), d, logger)

	var outcome Outcome
	switch {
	case err == nil:
		outcome = OutcomeAcked
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Error("failed to ack message", "error", ackErr)
		}
		logger.Info("booking notification sent")

	case retryCount < mq.MaxRetries:
		outcome = OutcomeRequeued
		logger.Warn("booking notification failed, requeueing",
			"error", err,
			"attempt", retryCount+1,
			"max_retries", mq.MaxRetries,
		)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.requeueTimeout)
		if rqErr := w.strategy.Requeue(rctx, ch, d); rqErr != nil {
			logger.Error("failed to requeue message", "error", rqErr)
		}
		cancel()

	default:
		outcome = OutcomeDeadLettered
		logger.Error("booking notification failed, moving to DLQ",
			"error", err,
			"dlq", mq.QueueBookingDLQ,
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Error("failed to dead-letter message", "error", nackErr)
		}
	}

	telemetry.WorkerMessages.WithLabelValues(outcome.String()).Inc()
	return outcome
}

// dispatch декодирует событие и вызывает Dispatcher.
// Ошибка декодирования считается неудачной отправкой.
func (w *Worker) dispatch(ctx context.Context, d amqp.Delivery, logger *slog.Logger) (err error) {
	event, err := mq.DecodeBookingCreated(d.Body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.handleTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDispatchPanic, r)
		}
		telemetry.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	logger.Debug("dispatching booking notification", "booking_id", event.BookingID)

	return w.dispatcher.Dispatch(ctx, event)
}
