package domain

// BookingStatus — статус бронирования.
//
// Жизненный цикл:
//
//	CONFIRMED → CANCELLED
type BookingStatus string

const (
	// BookingStatusConfirmed — место за пассажиром закреплено.
	BookingStatusConfirmed BookingStatus = "CONFIRMED"

	// BookingStatusCancelled — пассажир отменил бронирование, место возвращено.
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// IsActive возвращает true, пока бронирование занимает место.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusConfirmed
}
