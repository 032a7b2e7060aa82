// Package booking реализует use case бронирования мест в поездках.
//
// Service выполняет бронирование в транзакции хранилища и после коммита
// публикует BookingCreated. Результат публикации только логируется:
// недоступность брокера не влияет на ответ пассажиру.
package booking
