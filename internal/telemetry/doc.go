// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (stdout и ротируемый файл)
//   - metrics.go — Prometheus метрики publisher'а, worker'а и HTTP API
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
