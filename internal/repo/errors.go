package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrNoSeats — в поездке не осталось свободных мест.
	ErrNoSeats = errors.New("no seats available")

	// ErrOwnRide — водитель пытается забронировать свою поездку.
	ErrOwnRide = errors.New("driver cannot book own ride")

	// ErrNotOwner — запись принадлежит другому пользователю.
	ErrNotOwner = errors.New("not owner")

	// ErrUnknownUser — пользователя нет в таблице users.
	ErrUnknownUser = errors.New("unknown user")
)
