package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Carpooling/internal/domain"
	"github.com/shaiso/Carpooling/internal/mq"
)

// Booking DTOs

// CreateBookingRequest — запрос на бронирование места.
type CreateBookingRequest struct {
	RideID uuid.UUID `json:"ride_id"`
}

// BookingResponse — ответ с бронированием.
type BookingResponse struct {
	BookingID uuid.UUID            `json:"booking_id"`
	RideID    uuid.UUID            `json:"ride_id"`
	Status    domain.BookingStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// BookingFromDomain конвертирует domain.Booking в BookingResponse.
func BookingFromDomain(b domain.Booking) BookingResponse {
	return BookingResponse{
		BookingID: b.ID,
		RideID:    b.RideID,
		Status:    b.Status,
		CreatedAt: b.CreatedAt,
	}
}

// BookingPageResponse — страница бронирований пассажира.
type BookingPageResponse struct {
	Items      []BookingResponse `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int               `json:"total_count"`
}

// BookingPageFromDomain конвертирует domain.BookingPage в BookingPageResponse.
func BookingPageFromDomain(p domain.BookingPage) BookingPageResponse {
	items := make([]BookingResponse, len(p.Items))
	for i, b := range p.Items {
		items[i] = BookingFromDomain(b)
	}
	return BookingPageResponse{
		Items:      items,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalCount: p.TotalCount,
	}
}

// DLQ DTOs

// ReplayRequest — запрос на перенос сообщений из DLQ обратно в booking_queue.
type ReplayRequest struct {
	Limit int `json:"limit"`
}

// ReplayResponse — результат переноса.
type ReplayResponse struct {
	Replayed int `json:"replayed"`
}

// DLQStatsResponse — глубины очередей.
type DLQStatsResponse struct {
	Queues []mq.QueueStats `json:"queues"`
}
