// Package worker доставляет уведомления о бронированиях.
//
// # Обзор
//
// Worker — фоновый процесс, который читает BookingCreated из booking_queue
// и отправляет пассажиру письмо через Dispatcher. Worker не знает ничего
// о транспорте почты: любая ошибка Dispatcher — неудачная доставка.
//
//	w := worker.New(worker.Config{
//	    Broker:     conn,
//	    Dispatcher: dispatcher,
//	    Strategy:   mq.HeaderStrategy{},
//	    Logger:     logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка сообщения
//
//  1. Счётчик повторов берётся из RetryStrategy (0 для первой доставки)
//  2. Тело декодируется в BookingCreatedEvent
//  3. Dispatcher вызывается синхронно с таймаутом HandleTimeout
//  4. Успех → ack
//  5. Ошибка (в том числе декодирования), счётчик < MaxRetries → повтор
//  6. Ошибка, счётчик >= MaxRetries → nack без requeue, сообщение уходит в booking_dlq
//
// # Жизненный цикл
//
// Один канал на всё время жизни, prefetch 1, ручной ack. Stop отменяет цикл,
// ждёт текущее сообщение, затем закрывает канал и соединение; ошибки
// закрытия только логируются.
package worker
