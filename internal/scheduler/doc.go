// Package scheduler выполняет периодические проверки по cron-расписанию.
//
// Структура:
//   - monitor.go — DLQMonitor: наблюдение за глубиной booking_dlq
//   - cron.go    — парсинг расписаний (5 полей или @every / @hourly)
//
// Использование:
//
//	monitor, err := scheduler.NewDLQMonitor(scheduler.MonitorConfig{
//	    Source:   mq.NewInspector(conn, logger),
//	    Schedule: "@every 1m",
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := monitor.Start(ctx); err != nil {
//	    return err
//	}
//	defer monitor.Stop()
package scheduler
