package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Carpooling/internal/mq"
)

// Default configuration values.
const (
	defaultPrefetch       = 1
	defaultHandleTimeout  = 30 * time.Second
	defaultRequeueTimeout = 5 * time.Second
)

// Dispatcher доставляет уведомление о бронировании.
// Ошибка означает неудачную доставку; повторы решает Worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, event mq.BookingCreatedEvent) error
}

// Worker потребляет BookingCreated из booking_queue и отправляет уведомления.
//
// Worker:
//   - Открывает один канал на всё время жизни
//   - Обрабатывает сообщения по одному (prefetch 1, manual ack)
//   - Решает ack / повтор / DLQ по счётчику повторов
//   - Никогда не читает booking_dlq
type Worker struct {
	broker     mq.Broker
	dispatcher Dispatcher
	strategy   mq.RetryStrategy

	// Configuration
	prefetch       int
	handleTimeout  time.Duration
	requeueTimeout time.Duration
	tag            string

	// Lifecycle
	logger     *slog.Logger
	mu         sync.Mutex
	ch         mq.Channel
	started    bool
	running    bool
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// Config — конфигурация Worker.
type Config struct {
	// Broker — соединение с RabbitMQ. Worker закрывает его в Stop.
	Broker mq.Broker

	// Dispatcher — отправка уведомления (обязателен).
	Dispatcher Dispatcher

	// Strategy — подсчёт повторов (default: mq.HeaderStrategy).
	Strategy mq.RetryStrategy

	Prefetch      int           // default: 1
	HandleTimeout time.Duration // таймаут одной отправки (default: 30s)
	ConsumerTag   string

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	broker := cfg.Broker
	if broker == nil {
		broker = mq.NullBroker{}
	}

	strategy := cfg.Strategy
	if strategy == nil {
		strategy = mq.HeaderStrategy{}
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	handleTimeout := cfg.HandleTimeout
	if handleTimeout <= 0 {
		handleTimeout = defaultHandleTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		broker:         broker,
		dispatcher:     cfg.Dispatcher,
		strategy:       strategy,
		prefetch:       prefetch,
		handleTimeout:  handleTimeout,
		requeueTimeout: defaultRequeueTimeout,
		tag:            cfg.ConsumerTag,
		logger:         logger,
	}
}

// Start открывает канал, объявляет топологию и запускает цикл потребления.
// Ошибка здесь фатальна для процесса воркера: без брокера он работать не может.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	if w.dispatcher == nil {
		return ErrNoDispatcher
	}

	ch, err := w.broker.CreateChannel()
	if err != nil {
		return fmt.Errorf("open worker channel: %w", err)
	}

	if err := mq.DeclareTopology(ch); err != nil {
		_ = ch.Close()
		return err
	}

	consumer := mq.NewConsumer(ch, w.logger, mq.ConsumerConfig{
		Queue:    mq.QueueBooking,
		Prefetch: w.prefetch,
		Tag:      w.tag,
	})
	if err := consumer.Setup(); err != nil {
		_ = ch.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.ch = ch
	w.started = true
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.setRunning(false)

		err := consumer.Run(ctx, func(ctx context.Context, d amqp.Delivery) {
			w.handle(ctx, ch, d)
		})

		switch {
		case errors.Is(err, context.Canceled):
		case errors.Is(err, mq.ErrDeliveriesClosed):
			w.logger.Error("delivery channel closed, worker stopped consuming")
		default:
			w.logger.Error("booking consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started",
		"queue", mq.QueueBooking,
		"prefetch", w.prefetch,
		"handle_timeout", w.handleTimeout,
	)
	w.logger.Debug("topology declared", "topology", mq.TopologyInfo())
	return nil
}

// Stop останавливает цикл, дожидается текущего сообщения и закрывает
// сначала канал, затем соединение. Ошибки закрытия только логируются.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("stopping worker...")

		w.mu.Lock()
		cancel := w.cancelFunc
		ch := w.ch
		w.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		// Ждём завершения текущего сообщения
		w.wg.Wait()

		if ch != nil {
			if err := ch.Close(); err != nil {
				w.logger.Debug("failed to close worker channel", "error", err)
			}
		}
		if err := w.broker.Close(); err != nil {
			w.logger.Debug("failed to close broker connection", "error", err)
		}

		w.setRunning(false)
		w.logger.Info("worker stopped")
	})
}

// IsRunning сообщает, работает ли цикл потребления.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) setRunning(v bool) {
	w.mu.Lock()
	w.running = v
	w.mu.Unlock()
}
