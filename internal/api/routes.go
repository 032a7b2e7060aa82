package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Bookings
	mux.Handle("POST /api/v1/bookings", chain(http.HandlerFunc(h.CreateBooking)))
	mux.Handle("GET /api/v1/bookings/my", chain(http.HandlerFunc(h.ListMyBookings)))
	mux.Handle("DELETE /api/v1/bookings/{id}", chain(http.HandlerFunc(h.CancelBooking)))

	// DLQ administration
	if h.dlq != nil {
		mux.Handle("GET /api/v1/admin/dlq", chain(http.HandlerFunc(h.DLQStats)))
		mux.Handle("GET /api/v1/admin/dlq/messages", chain(http.HandlerFunc(h.PeekDLQ)))
		mux.Handle("POST /api/v1/admin/dlq/replay", chain(http.HandlerFunc(h.ReplayDLQ)))
	}
}
