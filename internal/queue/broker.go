package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bistro-pos/api/internal/enum"
)

type Broker interface {
	Publish(ctx context.Context, queueName string, message []byte) error
	Subscribe(ctx context.Context, queueName string, handler MessageHandler) error
	Close() error
}

type MessageHandler func(ctx context.Context, message []byte) error

const (
	QueueOrderEvents    = "order-events"
	QueueOrderEventsDLQ = "order-events-dlq"
)

// Order lifecycle event types pushed to the broker for downstream
// consumers (receipt printing, analytics).
const (
	EventOrderCreated = "order.created"
	EventOrderPaid    = "order.paid"
)

// OrderEvent is the envelope published to the order-events queue.
type OrderEvent struct {
	EventID    uuid.UUID      `json:"event_id"`
	Type       string         `json:"type"`
	OrderID    int64          `json:"order_id"`
	OrderType  enum.OrderType `json:"order_type"`
	Total      string         `json:"total"`
	OccurredAt time.Time      `json:"occurred_at"`
}
