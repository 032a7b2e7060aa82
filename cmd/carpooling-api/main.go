// Carpooling API — HTTP API бронирования мест.
//
// API:
//   - Бронирует места в транзакции PostgreSQL
//   - После коммита публикует BookingCreated в RabbitMQ (best-effort)
//   - Отдаёт операторам состояние и содержимое booking_dlq
//
// Недоступность RabbitMQ не мешает бронированию: события пропускаются.
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

	"github.com/shaiso/Carpooling/internal/api"
	"github.com/shaiso/Carpooling/internal/booking"
	"github.com/shaiso/Carpooling/internal/config"
	"github.com/shaiso/Carpooling/internal/mq"
	"github.com/shaiso/Carpooling/internal/repo"
	"github.com/shaiso/Carpooling/internal/telemetry"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load(configDir())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger, logCloser := telemetry.SetupLogger(cfg.Logging)
	defer logCloser.Close()
	logger.Info("starting carpooling-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, repo.PoolConfig{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// RabbitMQ: при недоступности API продолжает работать без событий
	conn := mq.Dial(mq.ConnectionConfig{
		URL:         cfg.Broker.URL,
		DialTimeout: cfg.Broker.DialTimeout,
		Name:        connectionName(cfg.Broker.ConnectionName, "carpooling-api"),
	}, logger)
	defer conn.Close()
	if !conn.IsConnected() {
		logger.Warn("RabbitMQ not available, booking events will be skipped")
	}

	publisher := mq.NewPublisher(mq.PublisherConfig{
		Broker:  conn,
		Logger:  logger,
		Timeout: cfg.Broker.PublishTimeout,
	})

	bookings := booking.NewService(booking.Config{
		Store:     repo.NewBookingRepo(pool),
		Publisher: publisher,
		Logger:    logger,
	})

	handler := api.NewHandler(api.Config{
		Bookings: bookings,
		DLQ:      mq.NewInspector(conn, logger),
		Logger:   logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.API.Port)

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
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
