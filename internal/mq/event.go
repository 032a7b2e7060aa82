package mq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventTypeBookingCreated — значение AMQP свойства type.
const EventTypeBookingCreated = "booking.created"

// BookingCreatedEvent — событие об успешном бронировании.
// Создаётся один раз на бронирование и не изменяется.
type BookingCreatedEvent struct {
	BookingID      uuid.UUID `json:"bookingId"`
	RideID         uuid.UUID `json:"rideId"`
	PassengerID    uuid.UUID `json:"passengerId"`
	PassengerEmail string    `json:"passengerEmail"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewBookingCreatedEvent создаёт событие с меткой времени в UTC.
func NewBookingCreatedEvent(bookingID, rideID, passengerID uuid.UUID, passengerEmail string, now time.Time) BookingCreatedEvent {
	return BookingCreatedEvent{
		BookingID:      bookingID,
		RideID:         rideID,
		PassengerID:    passengerID,
		PassengerEmail: passengerEmail,
		// Round(0) убирает monotonic часть, чтобы событие сравнивалось после round-trip
		OccurredAt: now.UTC().Round(0),
	}
}

// Encode сериализует событие в UTF-8 JSON.
func (e BookingCreatedEvent) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal booking event: %w", err)
	}
	return body, nil
}

// wireBookingEvent — формат на входе декодера.
// Принимает createdAt как синоним occurredAt и email как синоним passengerEmail.
type wireBookingEvent struct {
	BookingID      uuid.UUID  `json:"bookingId"`
	RideID         uuid.UUID  `json:"rideId"`
	PassengerID    uuid.UUID  `json:"passengerId"`
	PassengerEmail string     `json:"passengerEmail"`
	Email          string     `json:"email"`
	OccurredAt     *time.Time `json:"occurredAt"`
	CreatedAt      *time.Time `json:"createdAt"`
}

// DecodeBookingCreated разбирает тело сообщения.
// Ошибки всегда оборачивают ErrInvalidEvent.
func DecodeBookingCreated(body []byte) (BookingCreatedEvent, error) {
	var w wireBookingEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return BookingCreatedEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	ev := BookingCreatedEvent{
		BookingID:      w.BookingID,
		RideID:         w.RideID,
		PassengerID:    w.PassengerID,
		PassengerEmail: w.PassengerEmail,
	}
	if ev.PassengerEmail == "" {
		ev.PassengerEmail = w.Email
	}

	switch {
	case w.OccurredAt != nil:
		ev.OccurredAt = w.OccurredAt.UTC()
	case w.CreatedAt != nil:
		ev.OccurredAt = w.CreatedAt.UTC()
	}

	if ev.BookingID == uuid.Nil {
		return BookingCreatedEvent{}, fmt.Errorf("%w: missing bookingId", ErrInvalidEvent)
	}
	if ev.PassengerEmail == "" {
		return BookingCreatedEvent{}, fmt.Errorf("%w: missing passengerEmail", ErrInvalidEvent)
	}

	return ev, nil
}
