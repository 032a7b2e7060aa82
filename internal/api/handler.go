package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Carpooling/internal/domain"
	"github.com/shaiso/Carpooling/internal/mq"
)

// BookingService — use case бронирования. Реализуется booking.Service.
type BookingService interface {
	BookRide(ctx context.Context, passengerID, rideID uuid.UUID) (*domain.Booking, error)
	ListMine(ctx context.Context, passengerID uuid.UUID, page, pageSize int) (*domain.BookingPage, error)
	Cancel(ctx context.Context, bookingID, passengerID uuid.UUID) error
}

// DLQAdmin — операции над DLQ. Реализуется mq.Inspector.
type DLQAdmin interface {
	Stats(ctx context.Context) ([]mq.QueueStats, error)
	Peek(ctx context.Context, limit int) ([]mq.DeadLetter, error)
	Replay(ctx context.Context, limit int) (int, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	bookings BookingService
	dlq      DLQAdmin
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Bookings BookingService
	DLQ      DLQAdmin
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		bookings: cfg.Bookings,
		dlq:      cfg.DLQ,
		logger:   logger,
	}
}
