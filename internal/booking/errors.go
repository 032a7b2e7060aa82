package booking

import "errors"

// Ошибки use case бронирования.
var (
	// ErrRideNotFound — поездки нет или она удалена.
	ErrRideNotFound = errors.New("ride not found")

	// ErrNoSeats — свободных мест нет.
	ErrNoSeats = errors.New("no seats available")

	// ErrOwnRide — водитель не может бронировать свою поездку.
	ErrOwnRide = errors.New("driver cannot book own ride")

	// ErrPassengerNotFound — пассажир не зарегистрирован.
	ErrPassengerNotFound = errors.New("passenger not found")

	// ErrBookingNotFound — бронирования нет или оно уже отменено.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrForbidden — бронирование принадлежит другому пассажиру.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidPage — некорректные параметры пагинации.
	ErrInvalidPage = errors.New("invalid page request")
)
