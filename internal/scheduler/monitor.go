package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Carpooling/internal/telemetry"
)

// DefaultDLQSchedule — расписание проверки DLQ по умолчанию.
const DefaultDLQSchedule = "@every 1m"

// ErrMonitorStarted — Start вызван повторно.
var ErrMonitorStarted = errors.New("dlq monitor already started")

// DepthSource возвращает текущую глубину DLQ (mq.Inspector).
type DepthSource interface {
	DLQDepth(ctx context.Context) (int, error)
}

// DLQMonitor периодически проверяет глубину booking_dlq.
//
// Монитор только наблюдает: обновляет gauge carpooling_dlq_messages
// и пишет warning при непустой DLQ. Сообщения из DLQ он не читает.
type DLQMonitor struct {
	source   DepthSource
	schedule string
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	cron      *cron.Cron
	lastDepth int
	lastCheck time.Time
	lastErr   error
}

// MonitorConfig — конфигурация DLQMonitor.
type MonitorConfig struct {
	Source   DepthSource
	Schedule string        // default: @every 1m
	Timeout  time.Duration // таймаут одной проверки (default: 10s)
	Logger   *slog.Logger
}

// NewDLQMonitor создаёт монитор. Невалидное расписание — ошибка.
func NewDLQMonitor(cfg MonitorConfig) (*DLQMonitor, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultDLQSchedule
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DLQMonitor{
		source:   cfg.Source,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Check выполняет одну проверку.
func (m *DLQMonitor) Check(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	depth, err := m.source.DLQDepth(ctx)

	m.mu.Lock()
	m.lastCheck = time.Now()
	m.lastErr = err
	if err == nil {
		m.lastDepth = depth
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to check DLQ depth", "error", err)
		return 0, err
	}

	telemetry.DLQDepth.Set(float64(depth))

	if depth > 0 {
		m.logger.Warn("dead-lettered booking notifications waiting for manual processing",
			"queue", "booking_dlq",
			"messages", depth,
		)
	} else {
		m.logger.Debug("DLQ is empty")
	}

	return depth, nil
}

// Start выполняет первую проверку сразу и запускает cron.
func (m *DLQMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cron != nil {
		m.mu.Unlock()
		return ErrMonitorStarted
	}

	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		),
	)

	_, err := c.AddFunc(m.schedule, func() {
		_, _ = m.Check(ctx)
	})
	if err != nil {
		m.mu.Unlock()
		return err
	}

	m.cron = c
	m.mu.Unlock()

	_, _ = m.Check(ctx)
	c.Start()

	m.logger.Info("dlq monitor started",
		"schedule", m.schedule,
		"next_check", m.NextCheck(time.Now()),
	)
	return nil
}

// NextCheck возвращает время следующей плановой проверки после from.
func (m *DLQMonitor) NextCheck(from time.Time) time.Time {
	// Расписание проверено в NewDLQMonitor
	next, _ := NextRun(m.schedule, from)
	return next
}

// Stop останавливает cron и ждёт выполняющуюся проверку.
func (m *DLQMonitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.mu.Unlock()

	if c == nil {
		return
	}

	<-c.Stop().Done()
	m.logger.Info("dlq monitor stopped")
}

// Last возвращает результат последней проверки.
func (m *DLQMonitor) Last() (depth int, checkedAt time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDepth, m.lastCheck, m.lastErr
}
