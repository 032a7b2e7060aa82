package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Carpooling/internal/booking"
	"github.com/shaiso/Carpooling/internal/domain"
	"github.com/shaiso/Carpooling/internal/mq"
	"github.com/shaiso/Carpooling/internal/mq/mqtest"
)

// --- Fakes ---

type fakeBookings struct {
	bookErr   error
	listErr   error
	cancelErr error

	gotPassenger uuid.UUID
	gotRide      uuid.UUID
	gotPage      int
	gotPageSize  int
	gotCancelled uuid.UUID
}

func (f *fakeBookings) BookRide(_ context.Context, passengerID, rideID uuid.UUID) (*domain.Booking, error) {
	f.gotPassenger, f.gotRide = passengerID, rideID
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return domain.NewBooking(rideID, passengerID, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)), nil
}

func (f *fakeBookings) ListMine(_ context.Context, passengerID uuid.UUID, page, pageSize int) (*domain.BookingPage, error) {
	f.gotPassenger, f.gotPage, f.gotPageSize = passengerID, page, pageSize
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &domain.BookingPage{
		Items:      []domain.Booking{*domain.NewBooking(uuid.New(), passengerID, time.Now())},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: 1,
	}, nil
}

func (f *fakeBookings) Cancel(_ context.Context, bookingID, passengerID uuid.UUID) error {
	f.gotPassenger, f.gotCancelled = passengerID, bookingID
	return f.cancelErr
}

func newTestServer(bookings BookingService, dlq DLQAdmin) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(Config{Bookings: bookings, DLQ: dlq, Logger: logger})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, passenger, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if passenger != "" {
		req.Header.Set(HeaderPassengerID, passenger)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorCode {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error.Code
}

// --- Booking Handler Tests ---

func TestCreateBooking(t *testing.T) {
	svc := &fakeBookings{}
	mux := newTestServer(svc, nil)

	passenger, ride := uuid.New(), uuid.New()
	rec := do(t, mux, http.MethodPost, "/api/v1/bookings", passenger.String(), `{"ride_id":"`+ride.String()+`"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotPassenger != passenger || svc.gotRide != ride {
		t.Errorf("unexpected service args: %s %s", svc.gotPassenger, svc.gotRide)
	}
	if rec.Header().Get(HeaderRequestID) == "" {
		t.Error("expected request id header")
	}

	var resp struct {
		Data BookingResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.RideID != ride || resp.Data.Status != domain.BookingStatusConfirmed {
		t.Errorf("unexpected response: %+v", resp.Data)
	}
}

func TestCreateBooking_BadInput(t *testing.T) {
	mux := newTestServer(&fakeBookings{}, nil)
	passenger := uuid.NewString()

	tests := []struct {
		name      string
		passenger string
		body      string
		status    int
	}{
		{"missing passenger", "", `{"ride_id":"` + uuid.NewString() + `"}`, http.StatusUnauthorized},
		{"invalid passenger", "not-a-uuid", `{"ride_id":"` + uuid.NewString() + `"}`, http.StatusUnauthorized},
		{"invalid json", passenger, `{`, http.StatusBadRequest},
		{"missing ride", passenger, `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/api/v1/bookings", tt.passenger, tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestCreateBooking_ServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{booking.ErrRideNotFound, http.StatusNotFound, ErrCodeNotFound},
		{booking.ErrPassengerNotFound, http.StatusNotFound, ErrCodeNotFound},
		{booking.ErrNoSeats, http.StatusBadRequest, ErrCodeBadRequest},
		{booking.ErrOwnRide, http.StatusBadRequest, ErrCodeBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			mux := newTestServer(&fakeBookings{bookErr: tt.err}, nil)
			rec := do(t, mux, http.MethodPost, "/api/v1/bookings", uuid.NewString(), `{"ride_id":"`+uuid.NewString()+`"}`)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if code := decodeError(t, rec); code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, code)
			}
		})
	}
}

func TestListMyBookings(t *testing.T) {
	svc := &fakeBookings{}
	mux := newTestServer(svc, nil)

	rec := do(t, mux, http.MethodGet, "/api/v1/bookings/my?page=2&page_size=5", uuid.NewString(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotPage != 2 || svc.gotPageSize != 5 {
		t.Errorf("expected page 2 size 5, got %d/%d", svc.gotPage, svc.gotPageSize)
	}

	var resp struct {
		Data BookingPageResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.TotalCount != 1 || len(resp.Data.Items) != 1 {
		t.Errorf("unexpected page: %+v", resp.Data)
	}
}

func TestListMyBookings_Defaults(t *testing.T) {
	svc := &fakeBookings{}
	mux := newTestServer(svc, nil)

	rec := do(t, mux, http.MethodGet, "/api/v1/bookings/my", uuid.NewString(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.gotPage != 1 || svc.gotPageSize != booking.DefaultPageSize {
		t.Errorf("expected defaults, got %d/%d", svc.gotPage, svc.gotPageSize)
	}
}

func TestListMyBookings_BadInput(t *testing.T) {
	mux := newTestServer(&fakeBookings{listErr: booking.ErrInvalidPage}, nil)

	if rec := do(t, mux, http.MethodGet, "/api/v1/bookings/my?page=abc", uuid.NewString(), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("non numeric page: expected 400, got %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodGet, "/api/v1/bookings/my?page_size=0", uuid.NewString(), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid page from service: expected 400, got %d", rec.Code)
	}
}

func TestCancelBooking(t *testing.T) {
	svc := &fakeBookings{}
	mux := newTestServer(svc, nil)

	id := uuid.New()
	rec := do(t, mux, http.MethodDelete, "/api/v1/bookings/"+id.String(), uuid.NewString(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if svc.gotCancelled != id {
		t.Errorf("expected %s cancelled, got %s", id, svc.gotCancelled)
	}
}

func TestCancelBooking_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"invalid id", "/api/v1/bookings/xyz", nil, http.StatusBadRequest},
		{"not found", "/api/v1/bookings/" + uuid.NewString(), booking.ErrBookingNotFound, http.StatusNotFound},
		{"forbidden", "/api/v1/bookings/" + uuid.NewString(), booking.ErrForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestServer(&fakeBookings{cancelErr: tt.err}, nil)
			rec := do(t, mux, http.MethodDelete, tt.path, uuid.NewString(), "")
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

// --- DLQ Handler Tests ---

func seedDeadLetters(t *testing.T, broker *mqtest.Broker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := uuid.New()
		ev := mq.NewBookingCreatedEvent(id, uuid.New(), uuid.New(), "dead@example.com", time.Now())
		body, err := ev.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		broker.Publish("booking_dlq", amqp.Publishing{
			MessageId: id.String(),
			Headers:   amqp.Table{"x-retry-count": int32(3)},
			Body:      body,
		})
	}
}

func TestDLQ_StatsPeekReplay(t *testing.T) {
	broker := mqtest.NewBroker()
	seedDeadLetters(t, broker, 3)
	mux := newTestServer(&fakeBookings{}, mq.NewInspector(broker, nil))

	rec := do(t, mux, http.MethodGet, "/api/v1/admin/dlq", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", rec.Code)
	}
	var stats struct {
		Data DLQStatsResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	found := false
	for _, q := range stats.Data.Queues {
		if q.Queue == mq.QueueBookingDLQ {
			found = true
			if q.Messages != 3 {
				t.Errorf("expected 3 dead letters, got %d", q.Messages)
			}
		}
	}
	if !found {
		t.Errorf("booking_dlq missing from stats: %+v", stats.Data.Queues)
	}

	rec = do(t, mux, http.MethodGet, "/api/v1/admin/dlq/messages?limit=2", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("peek: expected 200, got %d", rec.Code)
	}
	var peek struct {
		Data  []mq.DeadLetter `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&peek); err != nil {
		t.Fatalf("decode peek: %v", err)
	}
	if len(peek.Data) != 2 || peek.Data[0].Event == nil {
		t.Errorf("unexpected peek result: %+v", peek.Data)
	}
	if got := len(broker.Ready("booking_dlq")); got != 3 {
		t.Errorf("peek must not consume, %d left", got)
	}

	rec = do(t, mux, http.MethodPost, "/api/v1/admin/dlq/replay", "", `{"limit":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", rec.Code)
	}
	var replay struct {
		Data ReplayResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&replay); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if replay.Data.Replayed != 2 {
		t.Errorf("expected 2 replayed, got %d", replay.Data.Replayed)
	}
	if got := len(broker.Ready("booking_queue")); got != 2 {
		t.Errorf("expected 2 messages back in booking_queue, got %d", got)
	}
}

func TestDLQ_ReplayWithoutBody(t *testing.T) {
	broker := mqtest.NewBroker()
	seedDeadLetters(t, broker, 1)
	mux := newTestServer(&fakeBookings{}, mq.NewInspector(broker, nil))

	rec := do(t, mux, http.MethodPost, "/api/v1/admin/dlq/replay", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDLQ_BadLimit(t *testing.T) {
	mux := newTestServer(&fakeBookings{}, mq.NewInspector(mqtest.NewBroker(), nil))

	if rec := do(t, mux, http.MethodGet, "/api/v1/admin/dlq/messages?limit=0", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("peek: expected 400, got %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/v1/admin/dlq/replay", "", `{"limit":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("replay: expected 400, got %d", rec.Code)
	}
}

func TestDLQ_BrokerUnavailable(t *testing.T) {
	mux := newTestServer(&fakeBookings{}, mq.NewInspector(mq.NullBroker{}, nil))

	rec := do(t, mux, http.MethodGet, "/api/v1/admin/dlq", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if code := decodeError(t, rec); code != ErrCodeUnavailable {
		t.Errorf("expected %s, got %s", ErrCodeUnavailable, code)
	}
}

func TestDLQ_RoutesDisabledWithoutInspector(t *testing.T) {
	mux := newTestServer(&fakeBookings{}, nil)

	if rec := do(t, mux, http.MethodGet, "/api/v1/admin/dlq", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without inspector, got %d", rec.Code)
	}
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Chain(Recovery(logger), RequestID(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequestID_Propagated(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RequestID(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); got != "req-42" {
		t.Errorf("expected incoming request id, got %q", got)
	}
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}
	rw.WriteHeader(http.StatusConflict)

	if rw.status != http.StatusConflict || rec.Code != http.StatusConflict {
		t.Errorf("expected 409 captured, got %d/%d", rw.status, rec.Code)
	}
}
