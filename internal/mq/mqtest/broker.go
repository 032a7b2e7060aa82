// Package mqtest предоставляет in-memory брокер для тестов пакетов,
// работающих с mq.Broker и mq.Channel.
//
// Брокер повторяет семантику RabbitMQ, важную для доставки уведомлений:
//   - default exchange маршрутизирует по имени очереди
//   - nack/reject без requeue отправляет сообщение по x-dead-letter-routing-key
//     и дописывает запись x-death
//   - nack с requeue возвращает сообщение в ту же очередь с Redelivered=true
package mqtest

import (
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Carpooling/internal/mq"
)

// Decision — решение consumer'а по доставке.
type Decision struct {
	Tag       uint64
	MessageID string
	Queue     string
	Ack       bool
	Requeue   bool
}

// Broker — in-memory реализация mq.Broker.
type Broker struct {
	mu sync.Mutex

	connected  bool
	closed     bool
	channelErr error

	// DeathOnRequeue — дописывать x-death и при nack с requeue
	// (брокер с dead-letter feedback loop на каждый повтор).
	DeathOnRequeue bool

	// OnChannel вызывается для каждого нового канала до его возврата.
	OnChannel func(ch *Channel)

	queues    map[string]*queue
	channels  []*Channel
	unacked   map[uint64]pending
	decisions []Decision
	nextTag   uint64
}

type queue struct {
	args     amqp.Table
	ready    []amqp.Delivery
	consumer chan amqp.Delivery
}

type pending struct {
	queue    string
	delivery amqp.Delivery
}

// NewBroker создаёт подключённый брокер без очередей.
func NewBroker() *Broker {
	return &Broker{
		connected: true,
		queues:    make(map[string]*queue),
		unacked:   make(map[uint64]pending),
	}
}

// SetConnected меняет состояние соединения.
func (b *Broker) SetConnected(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = v
}

// FailChannels заставляет CreateChannel возвращать err.
func (b *Broker) FailChannels(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channelErr = err
}

// IsConnected реализует mq.Broker.
func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected && !b.closed
}

// CreateChannel реализует mq.Broker.
func (b *Broker) CreateChannel() (mq.Channel, error) {
	b.mu.Lock()
	if !b.connected || b.closed {
		b.mu.Unlock()
		return nil, mq.ErrBrokerUnavailable
	}
	if b.channelErr != nil {
		err := b.channelErr
		b.mu.Unlock()
		return nil, err
	}

	ch := &Channel{broker: b}
	b.channels = append(b.channels, ch)
	hook := b.OnChannel
	b.mu.Unlock()

	if hook != nil {
		hook(ch)
	}
	return ch, nil
}

// Close реализует mq.Broker.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Closed сообщает, вызывался ли Close.
func (b *Broker) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Channels возвращает все открытые когда-либо каналы.
func (b *Broker) Channels() []*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Channel(nil), b.channels...)
}

// Decisions возвращает журнал ack/nack в порядке поступления.
func (b *Broker) Decisions() []Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Decision(nil), b.decisions...)
}

// Ready возвращает сообщения, ожидающие в очереди (не выданные consumer'у).
func (b *Broker) Ready(name string) []amqp.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return nil
	}
	return append([]amqp.Delivery(nil), q.ready...)
}

// Unacked возвращает количество выданных, но не подтверждённых сообщений.
func (b *Broker) Unacked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.unacked)
}

// Publish кладёт сообщение в очередь, как default exchange.
func (b *Broker) Publish(queueName string, msg amqp.Publishing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.route(queueName, deliveryFromPublishing(queueName, msg))
}

// declare создаёт очередь, если её нет.
func (b *Broker) declare(name string, args amqp.Table) *queue {
	q, ok := b.queues[name]
	if !ok {
		q = &queue{args: args}
		b.queues[name] = q
	}
	return q
}

// route доставляет сообщение consumer'у или оставляет в очереди.
// Вызывается под b.mu.
func (b *Broker) route(name string, d amqp.Delivery) {
	q := b.declare(name, nil)

	if q.consumer == nil {
		q.ready = append(q.ready, d)
		return
	}

	b.nextTag++
	d.DeliveryTag = b.nextTag
	d.Acknowledger = b
	b.unacked[d.DeliveryTag] = pending{queue: name, delivery: d}
	q.consumer <- d
}

// attach регистрирует consumer и отдаёт ему накопленные сообщения.
func (b *Broker) attach(name string) <-chan amqp.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.declare(name, nil)
	q.consumer = make(chan amqp.Delivery, 256)

	ready := q.ready
	q.ready = nil
	for _, d := range ready {
		b.route(name, d)
	}

	return q.consumer
}

// detach закрывает канал доставок consumer'а.
func (b *Broker) detach(name string, deliveries <-chan amqp.Delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok || q.consumer == nil || (<-chan amqp.Delivery)(q.consumer) != deliveries {
		return
	}
	close(q.consumer)
	q.consumer = nil
}

// get выдаёт одно сообщение для basic.get.
func (b *Broker) get(name string) (amqp.Delivery, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok || len(q.ready) == 0 {
		return amqp.Delivery{}, false
	}

	d := q.ready[0]
	q.ready = q.ready[1:]

	b.nextTag++
	d.DeliveryTag = b.nextTag
	d.Acknowledger = b
	b.unacked[d.DeliveryTag] = pending{queue: name, delivery: d}

	return d, true
}

// Ack реализует amqp.Acknowledger.
func (b *Broker) Ack(tag uint64, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.unacked[tag]
	if !ok {
		return errors.New("mqtest: unknown delivery tag")
	}
	delete(b.unacked, tag)

	b.decisions = append(b.decisions, Decision{
		Tag:       tag,
		MessageID: p.delivery.MessageId,
		Queue:     p.queue,
		Ack:       true,
	})
	return nil
}

// Nack реализует amqp.Acknowledger.
func (b *Broker) Nack(tag uint64, _ bool, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.unacked[tag]
	if !ok {
		return errors.New("mqtest: unknown delivery tag")
	}
	delete(b.unacked, tag)

	b.decisions = append(b.decisions, Decision{
		Tag:       tag,
		MessageID: p.delivery.MessageId,
		Queue:     p.queue,
		Requeue:   requeue,
	})

	d := p.delivery
	d.DeliveryTag = 0
	d.Acknowledger = nil

	if requeue {
		if b.DeathOnRequeue {
			d.Headers = withDeath(d.Headers, p.queue)
		}
		d.Redelivered = true
		b.route(p.queue, d)
		return nil
	}

	// Dead-letter маршрутизация по аргументам исходной очереди
	q := b.queues[p.queue]
	if q == nil || q.args == nil {
		return nil
	}
	target, _ := q.args["x-dead-letter-routing-key"].(string)
	if target == "" {
		return nil
	}

	d.Headers = withDeath(d.Headers, p.queue)
	d.Redelivered = false
	d.RoutingKey = target
	b.route(target, d)
	return nil
}

// Reject реализует amqp.Acknowledger.
func (b *Broker) Reject(tag uint64, requeue bool) error {
	return b.Nack(tag, false, requeue)
}

// withDeath увеличивает count первой записи x-death (или создаёт её).
func withDeath(headers amqp.Table, queueName string) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}

	count := int64(0)
	if deaths, ok := out["x-death"].([]any); ok && len(deaths) > 0 {
		if first, ok := deaths[0].(amqp.Table); ok {
			count, _ = first["count"].(int64)
		}
	}

	out["x-death"] = []any{amqp.Table{
		"count":  count + 1,
		"reason": "rejected",
		"queue":  queueName,
	}}
	return out
}

func deliveryFromPublishing(routingKey string, msg amqp.Publishing) amqp.Delivery {
	return amqp.Delivery{
		Headers:       msg.Headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  msg.DeliveryMode,
		CorrelationId: msg.CorrelationId,
		MessageId:     msg.MessageId,
		Timestamp:     msg.Timestamp,
		Type:          msg.Type,
		RoutingKey:    routingKey,
		Body:          msg.Body,
	}
}

var _ amqp.Acknowledger = (*Broker)(nil)
var _ mq.Broker = (*Broker)(nil)
