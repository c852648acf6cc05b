package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber defines an interface for subscribing to a message topic.
// Consume blocks until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error)
}

// EmailMessage is published to the notification topic for the mail relay to deliver
type EmailMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentConfirmed is consumed from the payment topic
type PaymentConfirmed struct {
	OrderID uuid.UUID  `json:"order_id"`
	PaidBy  *uuid.UUID `json:"paid_by,omitempty"`
}

// ShipmentDispatched is consumed from the fulfillment topic
type ShipmentDispatched struct {
	OrderID uuid.UUID `json:"order_id"`
}
