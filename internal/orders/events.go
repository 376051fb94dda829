package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "OrderCreated"

	TopicOrderCreated = "order.created"
)

// Partition key = order_id so every event for one order keeps its ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemSnapshot struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID         string         `json:"order_id"`
	StripeSessionID string         `json:"stripe_session_id"`
	UserID          *string        `json:"user_id,omitempty"`
	Items           []ItemSnapshot `json:"items"`
	SubtotalCents   int64          `json:"subtotal_cents"`
	TotalCents      int64          `json:"total_cents"`
}
