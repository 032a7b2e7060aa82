// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (use case бронирования, DLQ, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (request id, logging, metrics, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - booking_handler.go — обработчики для /bookings
//   - dlq_handler.go     — обработчики для /admin/dlq
//
// Пассажир определяется заголовком X-Passenger-ID: аутентификацию
// выполняет внешний шлюз.
package api
