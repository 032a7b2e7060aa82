// Package notify отправляет пассажирам письма о подтверждённом бронировании.
//
// Структура:
//   - sender.go     — интерфейс Sender и LogSender для локальной разработки
//   - smtp.go       — SMTPSender поверх go-smtp (connect, STARTTLS, AUTH, send, quit)
//   - message.go    — сборка MIME сообщения
//   - dispatcher.go — Dispatcher: событие → тема и тело письма → Sender
//   - ledger.go     — RedisLedger: отметка об уже отправленных уведомлениях
//
// Пакет не повторяет отправку: любая ошибка транспорта возвращается
// вызывающему, политику повторов определяет worker.
package notify
