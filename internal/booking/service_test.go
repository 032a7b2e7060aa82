package booking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Carpooling/internal/domain"
	"github.com/shaiso/Carpooling/internal/mq"
	"github.com/shaiso/Carpooling/internal/repo"
	"github.com/shaiso/Carpooling/internal/telemetry"
)

// --- Fakes ---

type fakeStore struct {
	mu sync.Mutex

	createErr error
	email     string
	created   []domain.Booking

	listItems []domain.Booking
	listTotal int
	listErr   error
	lastLimit int
	lastOff   int

	cancelErr error
	cancelled []uuid.UUID
}

func (s *fakeStore) CreateForRide(_ context.Context, b *domain.Booking) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = append(s.created, *b)
	return s.email, nil
}

func (s *fakeStore) ListByPassenger(_ context.Context, _ uuid.UUID, limit, offset int) ([]domain.Booking, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit, s.lastOff = limit, offset
	return s.listItems, s.listTotal, s.listErr
}

func (s *fakeStore) Cancel(_ context.Context, id, passengerID uuid.UUID, now time.Time) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	s.cancelled = append(s.cancelled, id)
	b := &domain.Booking{ID: id, RideID: uuid.New(), PassengerID: passengerID, Status: domain.BookingStatusConfirmed}
	b.Cancel(now)
	return b, nil
}

type publishCall struct {
	bookingID   uuid.UUID
	rideID      uuid.UUID
	passengerID uuid.UUID
	email       string
	ctxErr      error
}

type fakePublisher struct {
	mu     sync.Mutex
	result mq.PublishResult
	calls  []publishCall
}

func (p *fakePublisher) PublishBookingCreated(ctx context.Context, bookingID, rideID, passengerID uuid.UUID, email string) mq.PublishResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{bookingID, rideID, passengerID, email, ctx.Err()})
	return p.result
}

func newTestService(store *fakeStore, pub *fakePublisher, buf *bytes.Buffer) *Service {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(Config{Store: store, Publisher: pub, Logger: logger})
}

// --- BookRide Tests ---

func TestService_BookRide(t *testing.T) {
	store := &fakeStore{email: "rider@example.com"}
	pub := &fakePublisher{result: mq.PublishOK}
	var logs bytes.Buffer
	svc := newTestService(store, pub, &logs)

	passenger, ride := uuid.New(), uuid.New()
	b, err := svc.BookRide(context.Background(), passenger, ride)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if b.Status != domain.BookingStatusConfirmed {
		t.Errorf("expected CONFIRMED, got %s", b.Status)
	}
	if b.RideID != ride || b.PassengerID != passenger {
		t.Errorf("unexpected booking: %+v", b)
	}
	if len(store.created) != 1 || store.created[0].ID != b.ID {
		t.Fatalf("booking not stored: %+v", store.created)
	}

	if len(pub.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.calls))
	}
	call := pub.calls[0]
	if call.bookingID != b.ID || call.rideID != ride || call.passengerID != passenger {
		t.Errorf("unexpected publish ids: %+v", call)
	}
	if call.email != "rider@example.com" {
		t.Errorf("expected passenger email from store, got %s", call.email)
	}
	if !strings.Contains(logs.String(), "ride booked") {
		t.Errorf("expected booking to be logged, got %s", logs.String())
	}
}

func TestService_BookRide_PublishProblemsIgnored(t *testing.T) {
	tests := []struct {
		name   string
		result mq.PublishResult
		level  string
	}{
		{"skipped", mq.PublishSkipped, "level=WARN"},
		{"failed", mq.PublishFailed, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{email: "rider@example.com"}
			var logs bytes.Buffer
			svc := newTestService(store, &fakePublisher{result: tt.result}, &logs)

			b, err := svc.BookRide(context.Background(), uuid.New(), uuid.New())
			if err != nil {
				t.Fatalf("publish result must not fail booking: %v", err)
			}
			if b == nil || len(store.created) != 1 {
				t.Fatal("booking should be committed")
			}
			if !strings.Contains(logs.String(), tt.level) {
				t.Errorf("expected %s in logs, got %s", tt.level, logs.String())
			}
		})
	}
}

func TestService_BookRide_DetachedPublish(t *testing.T) {
	store := &fakeStore{email: "rider@example.com"}
	pub := &fakePublisher{result: mq.PublishOK}
	svc := newTestService(store, pub, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	svc.store = &cancelOnCreate{fakeStore: store, cancel: cancel}

	if _, err := svc.BookRide(ctx, uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Fatalf("expected publish, got %d calls", len(pub.calls))
	}
	if pub.calls[0].ctxErr != nil {
		t.Errorf("publish context must not inherit cancellation, got %v", pub.calls[0].ctxErr)
	}
}

// cancelOnCreate отменяет контекст запроса сразу после коммита.
type cancelOnCreate struct {
	*fakeStore
	cancel context.CancelFunc
}

func (s *cancelOnCreate) CreateForRide(ctx context.Context, b *domain.Booking) (string, error) {
	email, err := s.fakeStore.CreateForRide(ctx, b)
	s.cancel()
	return email, err
}

func TestService_BookRide_StoreErrors(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		want     error
	}{
		{"ride not found", fmt.Errorf("ride x: %w", repo.ErrNotFound), ErrRideNotFound},
		{"no seats", repo.ErrNoSeats, ErrNoSeats},
		{"own ride", repo.ErrOwnRide, ErrOwnRide},
		{"unknown passenger", fmt.Errorf("passenger x: %w", repo.ErrUnknownUser), ErrPassengerNotFound},
		{"db down", errors.New("connection reset"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			svc := newTestService(&fakeStore{createErr: tt.storeErr}, pub, &bytes.Buffer{})

			_, err := svc.BookRide(context.Background(), uuid.New(), uuid.New())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if len(pub.calls) != 0 {
				t.Error("nothing must be published when the transaction fails")
			}
		})
	}
}

func TestService_DefaultPublisher(t *testing.T) {
	svc := NewService(Config{Store: &fakeStore{email: "a@b.c"}})

	if _, err := svc.BookRide(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Errorf("booking without broker should succeed: %v", err)
	}
}

// --- ListMine Tests ---

func TestService_ListMine(t *testing.T) {
	store := &fakeStore{
		listItems: []domain.Booking{{ID: uuid.New()}, {ID: uuid.New()}},
		listTotal: 12,
	}
	svc := newTestService(store, &fakePublisher{}, &bytes.Buffer{})

	page, err := svc.ListMine(context.Background(), uuid.New(), 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.lastLimit != 5 || store.lastOff != 5 {
		t.Errorf("expected limit 5 offset 5, got %d/%d", store.lastLimit, store.lastOff)
	}
	if page.Page != 2 || page.PageSize != 5 || page.TotalCount != 12 || len(page.Items) != 2 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestService_ListMine_Paging(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"first page default", 0, 10, 10, 0, false},
		{"clamped size", 1, 500, MaxPageSize, 0, false},
		{"third page", 3, 20, 20, 40, false},
		{"zero size", 1, 0, 0, 0, true},
		{"negative page", -1, 10, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := newTestService(store, &fakePublisher{}, &bytes.Buffer{})

			_, err := svc.ListMine(context.Background(), uuid.New(), tt.page, tt.size)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPage) {
					t.Errorf("expected ErrInvalidPage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.lastLimit != tt.wantLimit || store.lastOff != tt.wantOffset {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantLimit, tt.wantOffset, store.lastLimit, store.lastOff)
			}
		})
	}
}

func TestService_ListMine_StoreError(t *testing.T) {
	svc := newTestService(&fakeStore{listErr: errors.New("boom")}, &fakePublisher{}, &bytes.Buffer{})

	if _, err := svc.ListMine(context.Background(), uuid.New(), 1, 10); err == nil {
		t.Error("expected error")
	}
}

// --- Cancel Tests ---

func TestService_Cancel(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	var logs bytes.Buffer
	svc := newTestService(store, pub, &logs)

	id := uuid.New()
	if err := svc.Cancel(context.Background(), id, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.cancelled) != 1 || store.cancelled[0] != id {
		t.Errorf("expected booking %s cancelled, got %v", id, store.cancelled)
	}
	if len(pub.calls) != 0 {
		t.Error("cancel must not publish events")
	}
	if !strings.Contains(logs.String(), "booking cancelled") {
		t.Errorf("expected cancel log, got %s", logs.String())
	}
}

func TestService_Cancel_Errors(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		want     error
	}{
		{"not found", repo.ErrNotFound, ErrBookingNotFound},
		{"not owner", repo.ErrNotOwner, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeStore{cancelErr: tt.storeErr}, &fakePublisher{}, &bytes.Buffer{})

			if err := svc.Cancel(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_ContextLogger(t *testing.T) {
	var own, scoped bytes.Buffer
	svc := newTestService(&fakeStore{}, &fakePublisher{}, &own)
	ctx := telemetry.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	if err := svc.Cancel(ctx, uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(scoped.String(), "booking cancelled") {
		t.Error("request scoped logger should be used")
	}
	if own.Len() != 0 {
		t.Errorf("service logger should stay silent, got %s", own.String())
	}
}
