package notify

import "errors"

// Ошибки отправки.
var (
	// ErrInvalidRecipient — адрес получателя не разбирается как email.
	ErrInvalidRecipient = errors.New("invalid recipient address")

	// ErrInvalidConfig — настройки SMTP неполные или противоречивые.
	ErrInvalidConfig = errors.New("invalid smtp config")

	// ErrUnknownTLSMode — неизвестный режим TLS.
	ErrUnknownTLSMode = errors.New("unknown tls mode")
)
