package domain

import (
	"time"

	"github.com/google/uuid"
)

// Booking — бронирование места в поездке.
//
// Создаётся в одной транзакции с уменьшением Ride.SeatsAvailable.
// После коммита публикуется событие BookingCreated.
type Booking struct {
	// ID — уникальный идентификатор бронирования.
	ID uuid.UUID `json:"id"`

	// RideID — поездка, в которой забронировано место.
	RideID uuid.UUID `json:"ride_id"`

	// PassengerID — пользователь, забронировавший место.
	PassengerID uuid.UUID `json:"passenger_id"`

	// Status — текущий статус.
	Status BookingStatus `json:"status"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения (отмена).
	// Nil, если бронирование не менялось.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// NewBooking создаёт подтверждённое бронирование.
func NewBooking(rideID, passengerID uuid.UUID, now time.Time) *Booking {
	return &Booking{
		ID:          uuid.New(),
		RideID:      rideID,
		PassengerID: passengerID,
		Status:      BookingStatusConfirmed,
		CreatedAt:   now.UTC(),
	}
}

// Cancel переводит бронирование в CANCELLED.
func (b *Booking) Cancel(now time.Time) {
	t := now.UTC()
	b.Status = BookingStatusCancelled
	b.UpdatedAt = &t
}

// BookingPage — страница бронирований пассажира.
type BookingPage struct {
	Items      []Booking `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int       `json:"total_count"`
}
