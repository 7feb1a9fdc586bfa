package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// maxRedeliveries before a message is parked on the dead-letter queue.
const maxRedeliveries = 3

const retryHeader = "x-retry-count"

// RabbitMQBroker publishes and consumes order events over a single
// AMQP channel. The mutex serializes channel access; amqp channels
// are not safe for concurrent use.
type RabbitMQBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	mu   sync.Mutex
}

type Config struct {
	URL           string
	PrefetchCount int
}

// NewRabbitMQBroker connects and declares the order-event queues.
// Both queues are durable so events survive a broker restart.
func NewRabbitMQBroker(cfg Config) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("set QoS: %w", err)
	}

	b := &RabbitMQBroker{conn: conn, ch: ch}

	for _, name := range []string{QueueOrderEvents, QueueOrderEventsDLQ} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			b.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	return b, nil
}

// Publish sends a persistent JSON message to the named queue.
func (b *RabbitMQBroker) Publish(ctx context.Context, queueName string, message []byte) error {
	return b.send(ctx, queueName, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         message,
		Timestamp:    time.Now(),
	})
}

// Subscribe consumes the named queue until ctx is cancelled. The
// handler runs once per delivery; failures are redelivered with
// backoff and dead-lettered after maxRedeliveries attempts.
func (b *RabbitMQBroker) Subscribe(ctx context.Context, queueName string, handler MessageHandler) error {
	b.mu.Lock()
	deliveries, err := b.ch.Consume(queueName, "", false, false, false, false, nil)
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", queueName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := handler(ctx, d.Body); err != nil {
					b.retry(ctx, queueName, d, err)
				}
				d.Ack(false)
			}
		}
	}()

	return nil
}

// retry requeues a failed delivery with exponential backoff, or parks
// it on the DLQ once the attempt budget is spent. The original
// delivery is always acked by the caller; losing the requeue publish
// loses the message, which is acceptable for analytics events.
func (b *RabbitMQBroker) retry(ctx context.Context, queueName string, d amqp.Delivery, cause error) {
	attempt := 0
	if n, ok := d.Headers[retryHeader].(int32); ok {
		attempt = int(n)
	}

	if attempt >= maxRedeliveries {
		_ = b.send(ctx, queueName+"-dlq", amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  d.ContentType,
			Body:         d.Body,
			Headers: amqp.Table{
				"x-original-queue": queueName,
				retryHeader:        int32(attempt),
				"x-error":          cause.Error(),
			},
			Timestamp: time.Now(),
		})
		return
	}

	// 2s, 4s, 8s
	time.Sleep(time.Duration(1<<(attempt+1)) * time.Second)

	_ = b.send(ctx, queueName, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  d.ContentType,
		Body:         d.Body,
		Headers:      amqp.Table{retryHeader: int32(attempt + 1)},
		Timestamp:    time.Now(),
	})
}

func (b *RabbitMQBroker) send(ctx context.Context, queueName string, pub amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		return fmt.Errorf("publish to %s: %w", queueName, err)
	}
	return nil
}

func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
