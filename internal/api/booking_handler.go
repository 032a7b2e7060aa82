package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Carpooling/internal/booking"
	"github.com/shaiso/Carpooling/internal/telemetry"
)

// HeaderPassengerID — заголовок с идентификатором аутентифицированного пассажира.
const HeaderPassengerID = "X-Passenger-ID"

// CreateBooking бронирует место в поездке.
// POST /api/v1/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	passengerID, ok := h.passengerID(w, r)
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.RideID == uuid.Nil {
		BadRequest(w, "ride_id is required")
		return
	}

	logger := telemetry.FromContext(r.Context(), h.logger)
	logger.Info("booking request received", "passenger_id", passengerID, "ride_id", req.RideID)

	b, err := h.bookings.BookRide(r.Context(), passengerID, req.RideID)
	if HandleServiceError(w, logger, err) {
		return
	}

	Created(w, BookingFromDomain(*b))
}

// ListMyBookings возвращает бронирования текущего пассажира.
// GET /api/v1/bookings/my?page=...&page_size=...
func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	passengerID, ok := h.passengerID(w, r)
	if !ok {
		return
	}

	page, ok := queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(w, r, "page_size", booking.DefaultPageSize)
	if !ok {
		return
	}

	result, err := h.bookings.ListMine(r.Context(), passengerID, page, pageSize)
	if HandleServiceError(w, telemetry.FromContext(r.Context(), h.logger), err) {
		return
	}

	Success(w, BookingPageFromDomain(*result))
}

// CancelBooking отменяет бронирование текущего пассажира.
// DELETE /api/v1/bookings/{id}
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	passengerID, ok := h.passengerID(w, r)
	if !ok {
		return
	}

	bookingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid booking id")
		return
	}

	err = h.bookings.Cancel(r.Context(), bookingID, passengerID)
	if HandleServiceError(w, telemetry.FromContext(r.Context(), h.logger), err) {
		return
	}

	NoContent(w)
}

// passengerID читает X-Passenger-ID. При ошибке сам пишет ответ 401.
func (h *Handler) passengerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(HeaderPassengerID)
	if raw == "" {
		Unauthorized(w, "missing "+HeaderPassengerID+" header")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		Unauthorized(w, "invalid "+HeaderPassengerID+" header")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt читает целочисленный query параметр. При ошибке сам пишет ответ 400.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		BadRequest(w, "invalid "+name)
		return 0, false
	}
	return n, true
}
