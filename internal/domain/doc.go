// Package domain содержит модели бронирований Carpooling.
package domain
