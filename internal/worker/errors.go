package worker

import "errors"

// Ошибки воркера.
var (
	// ErrAlreadyStarted — Start вызван повторно.
	ErrAlreadyStarted = errors.New("worker already started")

	// ErrNoDispatcher — не задан Dispatcher.
	ErrNoDispatcher = errors.New("worker dispatcher is not configured")

	// ErrDispatchPanic — Dispatcher запаниковал; обрабатывается как ошибка доставки.
	ErrDispatchPanic = errors.New("dispatch panicked")
)
