package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Carpooling/internal/domain"
	"github.com/shaiso/Carpooling/internal/mq"
	"github.com/shaiso/Carpooling/internal/repo"
	"github.com/shaiso/Carpooling/internal/telemetry"
)

// Параметры пагинации.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Store — хранилище бронирований. Реализуется repo.BookingRepo.
type Store interface {
	CreateForRide(ctx context.Context, b *domain.Booking) (string, error)
	ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]domain.Booking, int, error)
	Cancel(ctx context.Context, id, passengerID uuid.UUID, now time.Time) (*domain.Booking, error)
}

// Service — use case бронирования.
type Service struct {
	store     Store
	publisher mq.BookingEventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация Service.
type Config struct {
	Store     Store
	Publisher mq.BookingEventPublisher
	Logger    *slog.Logger
}

// NewService создаёт новый Service.
// Без Publisher события не публикуются (mq.NullBroker).
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = mq.NewPublisher(mq.PublisherConfig{Logger: logger})
	}

	return &Service{
		store:     cfg.Store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// BookRide бронирует место в поездке rideID для пассажира passengerID.
//
// Событие BookingCreated публикуется только после коммита. Ошибка
// публикации не возвращается.
func (s *Service) BookRide(ctx context.Context, passengerID, rideID uuid.UUID) (*domain.Booking, error) {
	b := domain.NewBooking(rideID, passengerID, s.now())

	email, err := s.store.CreateForRide(ctx, b)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRideNotFound
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	logger := telemetry.FromContext(ctx, s.logger).With(
		"booking_id", b.ID,
		"ride_id", rideID,
		"passenger_id", passengerID,
	)
	logger.Info("ride booked")

	// Бронирование уже закоммичено: отмена запроса не должна обрывать публикацию.
	result := s.publisher.PublishBookingCreated(context.WithoutCancel(ctx), b.ID, rideID, passengerID, email)
	switch result {
	case mq.PublishOK:
		logger.Debug("booking created event published")
	case mq.PublishSkipped:
		logger.Warn("booking created event skipped, broker unavailable")
	default:
		logger.Error("booking created event not published", "result", result.String())
	}

	return b, nil
}

// ListMine возвращает страницу активных бронирований пассажира.
// page начинается с 1; pageSize больше MaxPageSize урезается.
func (s *Service) ListMine(ctx context.Context, passengerID uuid.UUID, page, pageSize int) (*domain.BookingPage, error) {
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return nil, fmt.Errorf("%w: page must be positive", ErrInvalidPage)
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be greater than zero", ErrInvalidPage)
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	items, total, err := s.store.ListByPassenger(ctx, passengerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return &domain.BookingPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}, nil
}

// Cancel отменяет бронирование пассажира и возвращает место в поездку.
// Событие при отмене не публикуется.
func (s *Service) Cancel(ctx context.Context, bookingID, passengerID uuid.UUID) error {
	b, err := s.store.Cancel(ctx, bookingID, passengerID, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return ErrBookingNotFound
	}
	if err != nil {
		return mapStoreError(err)
	}

	telemetry.FromContext(ctx, s.logger).Info("booking cancelled",
		"booking_id", b.ID,
		"ride_id", b.RideID,
		"passenger_id", passengerID,
	)
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, repo.ErrNoSeats):
		return ErrNoSeats
	case errors.Is(err, repo.ErrOwnRide):
		return ErrOwnRide
	case errors.Is(err, repo.ErrUnknownUser):
		return ErrPassengerNotFound
	case errors.Is(err, repo.ErrNotOwner):
		return ErrForbidden
	default:
		return fmt.Errorf("booking store: %w", err)
	}
}
