package mq_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Carpooling/internal/mq"
	"github.com/shaiso/Carpooling/internal/mq/mqtest"
)

// --- Topology Tests ---

func TestDeclareTopology(t *testing.T) {
	broker := mqtest.NewBroker()
	raw, _ := broker.CreateChannel()
	ch := raw.(*mqtest.Channel)

	if err := mq.DeclareTopology(ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Повторное объявление не должно ломаться
	if err := mq.DeclareTopology(ch); err != nil {
		t.Fatalf("redeclare failed: %v", err)
	}

	declared := ch.Declared()
	if len(declared) != 4 {
		t.Fatalf("expected 4 declarations, got %d", len(declared))
	}

	main, dlq := declared[0], declared[1]
	if main.Name != "booking_queue" || dlq.Name != "booking_dlq" {
		t.Fatalf("unexpected queue order: %s, %s", main.Name, dlq.Name)
	}

	for _, d := range declared[:2] {
		if !d.Durable || d.AutoDelete || d.Exclusive || d.NoWait {
			t.Errorf("queue %s: expected durable, non-exclusive, non-auto-delete, got %+v", d.Name, d)
		}
	}

	if main.Args["x-dead-letter-exchange"] != "" {
		t.Errorf("expected default DLX, got %v", main.Args["x-dead-letter-exchange"])
	}
	if main.Args["x-dead-letter-routing-key"] != "booking_dlq" {
		t.Errorf("expected DLX routing key booking_dlq, got %v", main.Args["x-dead-letter-routing-key"])
	}
	if len(dlq.Args) != 0 {
		t.Errorf("DLQ should have no arguments, got %v", dlq.Args)
	}
}

func TestDeclareTopology_Error(t *testing.T) {
	broker := mqtest.NewBroker()
	raw, _ := broker.CreateChannel()
	ch := raw.(*mqtest.Channel)
	ch.DeclareErr = errors.New("PRECONDITION_FAILED")

	err := mq.DeclareTopology(ch)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ch.DeclareErr) {
		t.Errorf("error should wrap cause, got %v", err)
	}
}

func TestTopologyInfo(t *testing.T) {
	info := mq.TopologyInfo()
	for _, q := range []mq.Queue{mq.QueueBooking, mq.QueueBookingDLQ} {
		if !strings.Contains(info, string(q)) {
			t.Errorf("topology info should mention %s", q)
		}
	}
}

// --- Publisher Tests ---

func TestPublisher_BrokerUnavailable(t *testing.T) {
	p := mq.NewPublisher(mq.PublisherConfig{Broker: mq.NullBroker{}})

	result := p.PublishBookingCreated(context.Background(), uuid.New(), uuid.New(), uuid.New(), "a@b.c")
	if result != mq.PublishSkipped {
		t.Errorf("expected skipped, got %s", result)
	}
}

func TestPublisher_NilBroker(t *testing.T) {
	p := mq.NewPublisher(mq.PublisherConfig{})

	result := p.PublishBookingCreated(context.Background(), uuid.New(), uuid.New(), uuid.New(), "a@b.c")
	if result != mq.PublishSkipped {
		t.Errorf("expected skipped, got %s", result)
	}
}

func TestPublisher_Disconnected(t *testing.T) {
	broker := mqtest.NewBroker()
	broker.SetConnected(false)
	p := mq.NewPublisher(mq.PublisherConfig{Broker: broker})

	result := p.PublishBookingCreated(context.Background(), uuid.New(), uuid.New(), uuid.New(), "a@b.c")
	if result != mq.PublishSkipped {
		t.Errorf("expected skipped, got %s", result)
	}
	if len(broker.Channels()) != 0 {
		t.Error("no channel should be opened when disconnected")
	}
}

func TestPublisher_ChannelError(t *testing.T) {
	broker := mqtest.NewBroker()
	broker.FailChannels(errors.New("channel limit"))
	p := mq.NewPublisher(mq.PublisherConfig{Broker: broker})

	result := p.PublishBookingCreated(context.Background(), uuid.New(), uuid.New(), uuid.New(), "a@b.c")
	if result != mq.PublishSkipped {
		t.Errorf("expected skipped, got %s", result)
	}
}

func TestPublisher_Success(t *testing.T) {
	broker := mqtest.NewBroker()
	p := mq.NewPublisher(mq.PublisherConfig{Broker: broker})

	bookingID, rideID, passengerID := uuid.New(), uuid.New(), uuid.New()
	result := p.PublishBookingCreated(context.Background(), bookingID, rideID, passengerID, "rider@example.com")
	if result != mq.PublishOK {
		t.Fatalf("expected ok, got %s", result)
	}

	ready := broker.Ready("booking_queue")
	if len(ready) != 1 {
		t.Fatalf("expected 1 message in booking_queue, got %d", len(ready))
	}

	msg := ready[0]
	if msg.ContentType != "application/json" {
		t.Errorf("expected application/json, got %s", msg.ContentType)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Errorf("expected persistent delivery, got %d", msg.DeliveryMode)
	}
	if msg.MessageId != bookingID.String() {
		t.Errorf("expected message id %s, got %s", bookingID, msg.MessageId)
	}

	ev, err := mq.DecodeBookingCreated(msg.Body)
	if err != nil {
		t.Fatalf("published body should decode: %v", err)
	}
	if ev.BookingID != bookingID || ev.RideID != rideID || ev.PassengerID != passengerID {
		t.Errorf("event ids mismatch: %+v", ev)
	}
	if ev.PassengerEmail != "rider@example.com" {
		t.Errorf("expected rider@example.com, got %s", ev.PassengerEmail)
	}

	// Канал публикации закрывается после использования
	for _, ch := range broker.Channels() {
		if !ch.IsClosed() {
			t.Error("publisher channel should be closed")
		}
	}
}

func TestPublisher_PublishError(t *testing.T) {
	broker := mqtest.NewBroker()
	broker.OnChannel = func(ch *mqtest.Channel) {
		ch.PublishErr = errors.New("connection reset")
	}
	p := mq.NewPublisher(mq.PublisherConfig{Broker: broker})

	result := p.PublishBookingCreated(context.Background(), uuid.New(), uuid.New(), uuid.New(), "a@b.c")
	if result != mq.PublishFailed {
		t.Errorf("expected failed, got %s", result)
	}
	if len(broker.Ready("booking_queue")) != 0 {
		t.Error("no message should be enqueued")
	}
	if !broker.Channels()[0].IsClosed() {
		t.Error("channel should be closed on failure path")
	}
}

func TestPublisher_DeclareError(t *testing.T) {
	broker := mqtest.NewBroker()
	broker.OnChannel = func(ch *mqtest.Channel) {
		ch.DeclareErr = errors.New("inequivalent arg")
	}
	p := mq.NewPublisher(mq.PublisherConfig{Broker: broker})

	result := p.PublishBookingCreated(context.Background(), uuid.New(), uuid.New(), uuid.New(), "a@b.c")
	if result != mq.PublishFailed {
		t.Errorf("expected failed, got %s", result)
	}
}

func TestPublisher_Panic(t *testing.T) {
	broker := mqtest.NewBroker()
	broker.OnChannel = func(ch *mqtest.Channel) {
		ch.PublishPanic = "boom"
	}
	p := mq.NewPublisher(mq.PublisherConfig{Broker: broker})

	result := p.PublishBookingCreated(context.Background(), uuid.New(), uuid.New(), uuid.New(), "a@b.c")
	if result != mq.PublishFailed {
		t.Errorf("expected failed, got %s", result)
	}
	if !broker.Channels()[0].IsClosed() {
		t.Error("channel should be closed after panic")
	}
}

func TestPublishResult_String(t *testing.T) {
	tests := map[mq.PublishResult]string{
		mq.PublishOK:          "ok",
		mq.PublishSkipped:     "skipped",
		mq.PublishFailed:      "failed",
		mq.PublishResult(100): "unknown",
	}
	for r, want := range tests {
		if r.String() != want {
			t.Errorf("expected %s, got %s", want, r.String())
		}
	}
}
