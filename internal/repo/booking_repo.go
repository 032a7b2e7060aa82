package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Carpooling/internal/domain"
)

// BookingRepo — репозиторий бронирований.
//
// Изменения мест в поездке и бронирований выполняются в одной транзакции
// с блокировкой строки поездки (SELECT ... FOR UPDATE).
type BookingRepo struct {
	pool *pgxpool.Pool
}

// NewBookingRepo создаёт новый BookingRepo.
func NewBookingRepo(pool *pgxpool.Pool) *BookingRepo {
	return &BookingRepo{pool: pool}
}

// CreateForRide занимает место в поездке и сохраняет бронирование.
//
// Возвращает email пассажира для события BookingCreated.
// Ошибки: ErrNotFound (поездки нет или она удалена), ErrNoSeats,
// ErrOwnRide, ErrUnknownUser.
func (r *BookingRepo) CreateForRide(ctx context.Context, b *domain.Booking) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var driverID uuid.UUID
	var seats int
	err = tx.QueryRow(ctx, `
		SELECT driver_id, available_seats
		FROM rides
		WHERE id = $1 AND NOT is_deleted
		FOR UPDATE
	`, b.RideID).Scan(&driverID, &seats)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("ride %s: %w", b.RideID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lock ride: %w", err)
	}

	if seats <= 0 {
		return "", ErrNoSeats
	}
	if driverID == b.PassengerID {
		return "", ErrOwnRide
	}

	var email string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, b.PassengerID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("passenger %s: %w", b.PassengerID, ErrUnknownUser)
	}
	if err != nil {
		return "", fmt.Errorf("get passenger email: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE rides
		SET available_seats = available_seats - 1, updated_at = NOW()
		WHERE id = $1
	`, b.RideID)
	if err != nil {
		return "", fmt.Errorf("decrement seats: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, ride_id, passenger_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, b.RideID, b.PassengerID, b.Status, b.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit booking: %w", err)
	}
	return email, nil
}

// GetByID возвращает бронирование по ID.
func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `
		SELECT id, ride_id, passenger_id, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	return scanBooking(r.pool.QueryRow(ctx, query, id))
}

// ListByPassenger возвращает активные бронирования пассажира, новые первыми,
// и общее их количество.
func (r *BookingRepo) ListByPassenger(ctx context.Context, passengerID uuid.UUID, limit, offset int) ([]domain.Booking, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM bookings
		WHERE passenger_id = $1 AND status <> $2
	`, passengerID, domain.BookingStatusCancelled).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, ride_id, passenger_id, status, created_at, updated_at
		FROM bookings
		WHERE passenger_id = $1 AND status <> $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, passengerID, domain.BookingStatusCancelled, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, total, nil
}

// Cancel отменяет бронирование пассажира и возвращает место в поездку.
//
// Ошибки: ErrNotFound (нет или уже отменено), ErrNotOwner.
func (r *BookingRepo) Cancel(ctx context.Context, id, passengerID uuid.UUID, now time.Time) (*domain.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := scanBooking(tx.QueryRow(ctx, `
		SELECT id, ride_id, passenger_id, status, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}
	if !b.Status.IsActive() {
		return nil, ErrNotFound
	}
	if b.PassengerID != passengerID {
		return nil, ErrNotOwner
	}

	b.Cancel(now)

	_, err = tx.Exec(ctx, `
		UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1
	`, b.ID, b.Status, b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE rides
		SET available_seats = available_seats + 1, updated_at = NOW()
		WHERE id = $1
	`, b.RideID)
	if err != nil {
		return nil, fmt.Errorf("restore seat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return b, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID,
		&b.RideID,
		&b.PassengerID,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	return &b, nil
}
