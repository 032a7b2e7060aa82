package mq

import "errors"

// Ошибки пакета mq.
var (
	// ErrBrokerUnavailable — соединение с брокером не установлено или закрыто.
	ErrBrokerUnavailable = errors.New("broker unavailable")

	// ErrInvalidEvent — тело сообщения не является корректным BookingCreated.
	ErrInvalidEvent = errors.New("invalid booking event")

	// ErrUnknownRetryMode — неизвестный режим подсчёта повторов.
	ErrUnknownRetryMode = errors.New("unknown retry mode")
)
