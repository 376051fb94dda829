package catalog

import "time"

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Image      *string   `json:"image,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	InStock    bool      `json:"in_stock"` // always derived: stock > 0
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UpdateParams carries an admin edit; nil fields are left untouched.
// Stock/price edits keep the in_stock flag derived from the written stock.
type UpdateParams struct {
	Name       *string
	Category   *string
	Image      *string
	PriceCents *int64
	Stock      *int
}
