package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/shaiso/Carpooling/internal/mq"
)

// ConfirmationSubject — тема письма о подтверждении.
const ConfirmationSubject = "Carpooling Booking Confirmed"

var confirmationBody = template.Must(template.New("confirmation").Parse(
	`Hello,

Your booking is confirmed.

Booking: {{.BookingID}}
Ride:    {{.RideID}}
Booked:  {{.OccurredAt.Format "2006-01-02 15:04 MST"}}

Have a good trip!
Carpooling
`))

// Dispatcher превращает BookingCreatedEvent в письмо и отправляет его.
type Dispatcher struct {
	sender Sender
	ledger Ledger
	logger *slog.Logger
}

// DispatcherConfig — конфигурация Dispatcher.
type DispatcherConfig struct {
	Sender Sender

	// Ledger — опциональная отметка об отправленных письмах.
	Ledger Ledger

	Logger *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		sender: cfg.Sender,
		ledger: cfg.Ledger,
		logger: logger,
	}
}

// Dispatch отправляет подтверждение по событию.
//
// Если Ledger помнит бронирование, письмо не отправляется повторно.
// Ошибки Ledger только логируются и не влияют на результат.
func (d *Dispatcher) Dispatch(ctx context.Context, event mq.BookingCreatedEvent) error {
	logger := d.logger.With("booking_id", event.BookingID)

	if d.ledger != nil {
		sent, err := d.ledger.WasSent(ctx, event.BookingID)
		if err != nil {
			logger.Warn("sent ledger lookup failed", "error", err)
		} else if sent {
			logger.Info("booking confirmation already sent, skipping")
			return nil
		}
	}

	body, err := RenderConfirmation(event)
	if err != nil {
		return err
	}

	if err := d.sender.SendBookingConfirmation(ctx, event.PassengerEmail, ConfirmationSubject, body); err != nil {
		return fmt.Errorf("send booking confirmation: %w", err)
	}

	if d.ledger != nil {
		if err := d.ledger.MarkSent(ctx, event.BookingID); err != nil {
			logger.Warn("failed to mark booking confirmation as sent", "error", err)
		}
	}

	return nil
}

// RenderConfirmation строит текст письма.
func RenderConfirmation(event mq.BookingCreatedEvent) (string, error) {
	var buf bytes.Buffer
	if err := confirmationBody.Execute(&buf, event); err != nil {
		return "", fmt.Errorf("render confirmation: %w", err)
	}
	return buf.String(), nil
}
