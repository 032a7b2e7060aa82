package mqtest

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Carpooling/internal/mq"
)

// Declared — запись об объявлении очереди.
type Declared struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
}

// Published — запись о публикации.
type Published struct {
	Exchange string
	Key      string
	Msg      amqp.Publishing
}

// Channel — in-memory реализация mq.Channel.
// Поля *Err и PublishPanic задаются тестом до использования канала.
type Channel struct {
	broker *Broker

	DeclareErr   error
	PublishErr   error
	QosErr       error
	ConsumeErr   error
	GetErr       error
	CloseErr     error
	PublishPanic any

	mu         sync.Mutex
	declared   []Declared
	published  []Published
	prefetch   int
	autoAck    bool
	closed     bool
	consumed   string
	deliveries <-chan amqp.Delivery
}

// QueueDeclare реализует mq.Channel.
func (c *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if c.DeclareErr != nil {
		return amqp.Queue{}, c.DeclareErr
	}

	c.mu.Lock()
	c.declared = append(c.declared, Declared{
		Name:       name,
		Durable:    durable,
		AutoDelete: autoDelete,
		Exclusive:  exclusive,
		NoWait:     noWait,
		Args:       args,
	})
	c.mu.Unlock()

	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	q := c.broker.declare(name, args)
	if q.args == nil && args != nil {
		q.args = args
	}

	return amqp.Queue{Name: name, Messages: len(q.ready)}, nil
}

// QueueDeclarePassive реализует mq.Channel.
func (c *Channel) QueueDeclarePassive(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if c.DeclareErr != nil {
		return amqp.Queue{}, c.DeclareErr
	}

	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()

	q, ok := c.broker.queues[name]
	if !ok {
		return amqp.Queue{}, errors.New("mqtest: NOT_FOUND - no queue '" + name + "'")
	}

	consumers := 0
	if q.consumer != nil {
		consumers = 1
	}
	return amqp.Queue{Name: name, Messages: len(q.ready), Consumers: consumers}, nil
}

// PublishWithContext реализует mq.Channel.
func (c *Channel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.PublishPanic != nil {
		panic(c.PublishPanic)
	}
	if c.PublishErr != nil {
		return c.PublishErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.published = append(c.published, Published{Exchange: exchange, Key: key, Msg: msg})
	c.mu.Unlock()

	if exchange == mq.ExchangeDefault {
		c.broker.Publish(key, msg)
	}
	return nil
}

// Qos реализует mq.Channel.
func (c *Channel) Qos(prefetchCount, _ int, _ bool) error {
	if c.QosErr != nil {
		return c.QosErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

// Consume реализует mq.Channel.
func (c *Channel) Consume(queue, _ string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	if c.ConsumeErr != nil {
		return nil, c.ConsumeErr
	}

	deliveries := c.broker.attach(queue)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumed = queue
	c.autoAck = autoAck
	c.deliveries = deliveries

	return deliveries, nil
}

// Get реализует mq.Channel.
func (c *Channel) Get(queue string, _ bool) (amqp.Delivery, bool, error) {
	if c.GetErr != nil {
		return amqp.Delivery{}, false, c.GetErr
	}
	d, ok := c.broker.get(queue)
	return d, ok, nil
}

// Close реализует mq.Channel: закрывает канал доставок consumer'а, как брокер.
func (c *Channel) Close() error {
	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	consumed, deliveries := c.consumed, c.deliveries
	c.mu.Unlock()

	if !wasClosed && deliveries != nil {
		c.broker.detach(consumed, deliveries)
	}
	return c.CloseErr
}

// Declared возвращает объявленные очереди.
func (c *Channel) Declared() []Declared {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Declared(nil), c.declared...)
}

// Published возвращает опубликованные сообщения.
func (c *Channel) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// Prefetch возвращает значение последнего Qos.
func (c *Channel) Prefetch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefetch
}

// AutoAck сообщает, был ли consumer зарегистрирован с auto-ack.
func (c *Channel) AutoAck() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoAck
}

// IsClosed сообщает, вызывался ли Close.
func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ mq.Channel = (*Channel)(nil)
