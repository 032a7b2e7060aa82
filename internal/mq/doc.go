// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с брокером (Broker, Channel), состояние "недоступен" без паник
//   - topology.go   — объявление booking_queue и booking_dlq с dead-letter маршрутизацией
//   - event.go      — событие BookingCreated и его JSON-формат
//   - publisher.go  — fire-and-forget публикация событий о бронировании
//   - retry.go      — подсчёт повторов доставки (x-death или x-retry-count)
//   - inspect.go    — просмотр и ручной replay сообщений из DLQ
//
// Очереди:
//   - booking_queue — основная очередь, переполнение уходит в booking_dlq
//   - booking_dlq   — терминальная очередь для ручного разбора
package mq
