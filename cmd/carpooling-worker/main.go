// Carpooling Worker — доставляет подтверждения бронирований.
//
// Worker:
//   - Получает BookingCreated из booking_queue (prefetch 1, ручной ack)
//   - Отправляет письмо пассажиру (SMTP или лог)
//   - Повторяет неудачные отправки до трёх раз, затем отправляет в booking_dlq
//   - Периодически проверяет глубину booking_dlq
//
// Без RabbitMQ worker не стартует.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Carpooling/internal/config"
	"github.com/shaiso/Carpooling/internal/mq"
	"github.com/shaiso/Carpooling/internal/notify"
	"github.com/shaiso/Carpooling/internal/scheduler"
	"github.com/shaiso/Carpooling/internal/telemetry"
	"github.com/shaiso/Carpooling/internal/worker"
)

func main() {
	cfg, err := config.Load(configDir())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger, logCloser := telemetry.SetupLogger(cfg.Logging)
	defer logCloser.Close()
	logger.Info("starting carpooling-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	strategy, err := mq.NewRetryStrategy(cfg.Broker.RetryMode)
	if err != nil {
		logger.Error("invalid retry mode", "error", err)
		os.Exit(1)
	}
	if cfg.Broker.RetryMode == mq.RetryModeDeath {
		logger.Warn("retry budget relies on broker x-death records, requeue must loop through a dead-letter exchange",
			"max_retries", mq.MaxRetries,
		)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Почтовый транспорт
	var sender notify.Sender
	switch cfg.Email.Transport {
	case config.TransportLog:
		sender = notify.NewLogSender(logger)
		logger.Warn("email transport is log, confirmations are not delivered")
	default:
		smtpSender, err := notify.NewSMTPSender(cfg.Email.SMTP(), logger)
		if err != nil {
			logger.Error("failed to configure smtp sender", "error", err)
			os.Exit(1)
		}
		sender = smtpSender
	}

	// Журнал отправленных писем (необязательный)
	var ledger notify.Ledger
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not available, duplicate suppression is best effort", "error", err)
		}
		pingCancel()

		ledger = notify.NewRedisLedger(rdb, cfg.Redis.SentTTL)
	}

	dispatcher := notify.NewDispatcher(notify.DispatcherConfig{
		Sender: sender,
		Ledger: ledger,
		Logger: logger,
	})

	// RabbitMQ
	conn := mq.Dial(mq.ConnectionConfig{
		URL:         cfg.Broker.URL,
		DialTimeout: cfg.Broker.DialTimeout,
		Name:        connectionName(cfg.Broker.ConnectionName, "carpooling-worker"),
	}, logger)

	// Создаём worker
	w := worker.New(worker.Config{
		Broker:        conn,
		Dispatcher:    dispatcher,
		Strategy:      strategy,
		Prefetch:      cfg.Worker.Prefetch,
		HandleTimeout: cfg.Worker.HandleTimeout,
		ConsumerTag:   cfg.Worker.ConsumerTag,
		Logger:        logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		_ = conn.Close()
		os.Exit(1)
	}

	// Мониторинг DLQ
	monitor, err := scheduler.NewDLQMonitor(scheduler.MonitorConfig{
		Source:   mq.NewInspector(conn, logger),
		Schedule: cfg.Worker.DLQCheckSchedule,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("invalid dlq check schedule", "error", err)
		w.Stop()
		os.Exit(1)
	}
	if err := monitor.Start(ctx); err != nil {
		logger.Warn("dlq monitor not started", "error", err)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if !w.IsRunning() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte("worker stopped"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Worker.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Монитор использует то же соединение, останавливаем его первым
	monitor.Stop()
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("carpooling-worker stopped")
}

// configDir — каталог с config.yaml (CARPOOLING_CONFIG_DIR, по умолчанию ./config).
func configDir() string {
	if v := os.Getenv("CARPOOLING_CONFIG_DIR"); v != "" {
		return v
	}
	return "config"
}

func connectionName(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
