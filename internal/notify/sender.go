package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
)

// Sender отправляет одно письмо. Ошибка означает, что письмо не отправлено.
type Sender interface {
	SendBookingConfirmation(ctx context.Context, toEmail, subject, body string) error
}

// LogSender пишет письмо в лог вместо отправки.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender создаёт LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// SendBookingConfirmation логирует письмо. Ошибка только для невалидного адреса.
func (s *LogSender) SendBookingConfirmation(_ context.Context, toEmail, subject, body string) error {
	if _, err := parseRecipient(toEmail); err != nil {
		return err
	}

	s.logger.Info("email (log transport)",
		"to", toEmail,
		"subject", subject,
		"body", body,
	)
	return nil
}

// parseRecipient проверяет адрес получателя.
func parseRecipient(addr string) (*mail.Address, error) {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRecipient, addr, err)
	}
	return parsed, nil
}

var (
	_ Sender = (*LogSender)(nil)
	_ Sender = (*SMTPSender)(nil)
)
