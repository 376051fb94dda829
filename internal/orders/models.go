package orders

import "time"

type Order struct {
	ID                    string    `json:"id"`
	UserID                *string   `json:"user_id"` // nil = guest order
	Status                Status    `json:"status"`
	PaymentStatus         PayStatus `json:"payment_status"`
	SubtotalCents         int64     `json:"subtotal_cents"`
	TotalCents            int64     `json:"total_cents"`
	Currency              string    `json:"currency"`
	ShippingAddress       string    `json:"shipping_address,omitempty"` // raw JSON as captured at checkout
	StripeSessionID       string    `json:"stripe_session_id"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// OrderItem denormalizes name/image/price at purchase time; later product
// edits never rewrite history.
type OrderItem struct {
	ID             int64   `json:"id"`
	OrderID        string  `json:"order_id"`
	ProductID      string  `json:"product_id"`
	Name           string  `json:"name"`
	Image          *string `json:"image,omitempty"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Qty            int     `json:"qty"`
}
