package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modavie/checkout-service/internal/payments"
)

// Metadata keys on the Stripe session; the webhook reads these back as the
// sole source of truth for order reconstruction.
const (
	MetaCart            = "cart"
	MetaShippingAddress = "shipping_address"
	MetaReservationID   = "reservation_id"
)

// shippingToleranceCents absorbs float->minor-unit rounding of the client's
// shipping line.
const shippingToleranceCents = 1

type CartLine struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"` // client display price; never used for charging
	Quantity int     `json:"quantity"`
	Category string  `json:"category"`
	Image    string  `json:"image,omitempty"`
}

type Request struct {
	Items           []CartLine      `json:"items"`
	SuccessURL      string          `json:"successUrl"`
	CancelURL       string          `json:"cancelUrl"`
	UserEmail       string          `json:"userEmail,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
}

type Session struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// SnapshotItem is one line of the compact cart snapshot stored in session
// metadata: no images, authoritative price in minor units.
type SnapshotItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
}

type Reserver interface {
	Reserve(ctx context.Context, productID string, qty int, sessionID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

type PriceSource interface {
	PricesByID(ctx context.Context, ids []string) (map[string]int64, error)
}

type SessionCreator interface {
	CreateSession(ctx context.Context, in payments.SessionInput) (payments.Session, error)
}

// Service turns a client-submitted cart into a trustworthy Stripe checkout
// session: stock held for every line, every price-affecting input recomputed
// server-side.
type Service struct {
	Catalog  PriceSource
	Stock    Reserver
	Payments SessionCreator

	Currency          string
	ShippingCostCents int64
	FreeShippingQty   int
	ReservationTTL    time.Duration
}

func (s *Service) CreateSession(ctx context.Context, req Request) (Session, error) {
	lines, clientShipCents, hasClientShip, err := splitCart(req.Items)
	if err != nil {
		return Session{}, err
	}
	if len(lines) == 0 {
		return Session{}, &ValidationError{Msg: "cart is empty"}
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return Session{}, &ValidationError{Msg: "successUrl and cancelUrl are required"}
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ID)
	}
	prices, err := s.Catalog.PricesByID(ctx, ids)
	if err != nil {
		return Session{}, fmt.Errorf("fetch prices: %w", err)
	}
	for _, l := range lines {
		cents, ok := prices[l.ID]
		if !ok {
			return Session{}, &ValidationError{Msg: fmt.Sprintf("unknown product: %s", l.ID)}
		}
		if client := toCents(l.Price); client != cents {
			log.Printf("price drift on %s: client sent %d, catalog says %d (catalog wins)", l.ID, client, cents)
		}
	}

	// One hold per product per attempt; all-or-nothing across the cart.
	reservationID := uuid.NewString()
	for _, l := range lines {
		ok, err := s.Stock.Reserve(ctx, l.ID, l.Quantity, reservationID, s.ReservationTTL)
		if err != nil {
			s.rollback(ctx, reservationID)
			return Session{}, fmt.Errorf("reserve %s: %w", l.ID, err)
		}
		if !ok {
			s.rollback(ctx, reservationID)
			return Session{}, &InsufficientStockError{ProductID: l.ID, Name: l.Name, Requested: l.Quantity}
		}
	}

	totalQty := 0
	for _, l := range lines {
		totalQty += l.Quantity
	}
	serverShipCents := s.shippingCost(totalQty)
	if hasClientShip && abs64(clientShipCents-serverShipCents) > shippingToleranceCents {
		s.rollback(ctx, reservationID)
		return Session{}, &PriceIntegrityError{ClientCents: clientShipCents, ServerCents: serverShipCents}
	}

	currency := req.Currency
	if currency == "" {
		currency = s.Currency
	}

	items := make([]payments.LineItem, 0, len(lines)+1)
	snapshot := make([]SnapshotItem, 0, len(lines))
	for _, l := range lines {
		cents := prices[l.ID]
		items = append(items, payments.LineItem{
			Name:            l.Name,
			Category:        l.Category,
			Image:           l.Image,
			UnitAmountCents: cents,
			Quantity:        int64(l.Quantity),
		})
		snapshot = append(snapshot, SnapshotItem{
			ID:       l.ID,
			Name:     l.Name,
			Price:    cents,
			Quantity: l.Quantity,
			Category: l.Category,
		})
	}
	if serverShipCents > 0 {
		items = append(items, payments.LineItem{
			Name:            "Shipping",
			Category:        "shipping",
			UnitAmountCents: serverShipCents,
			Quantity:        1,
		})
	}

	meta := map[string]string{
		MetaCart:          string(mustJSON(snapshot)),
		MetaReservationID: reservationID,
	}
	if len(req.ShippingAddress) > 0 {
		meta[MetaShippingAddress] = string(req.ShippingAddress)
	}

	sess, err := s.Payments.CreateSession(ctx, payments.SessionInput{
		LineItems:     items,
		Currency:      currency,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		CustomerEmail: req.UserEmail,
		Metadata:      meta,
	})
	if err != nil {
		s.rollback(ctx, reservationID)
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{SessionID: sess.ID, URL: sess.URL}, nil
}

// rollback releases every hold this attempt acquired; no orphaned holds
// survive a failed attempt. Release errors are logged, not returned — the
// hold still expires on its own.
func (s *Service) rollback(ctx context.Context, reservationID string) {
	if err := s.Stock.Release(ctx, reservationID); err != nil {
		log.Printf("release reservation %s: %v", reservationID, err)
	}
}

func (s *Service) shippingCost(totalQty int) int64 {
	if totalQty >= s.FreeShippingQty {
		return 0
	}
	return s.ShippingCostCents
}

// splitCart separates product lines from any client-supplied shipping line
// and validates quantities. The shipping line never reaches the provider;
// it only feeds the integrity check.
func splitCart(items []CartLine) (lines []CartLine, shipCents int64, hasShip bool, err error) {
	for _, it := range items {
		if isShippingLine(it) {
			hasShip = true
			qty := it.Quantity
			if qty <= 0 {
				qty = 1
			}
			shipCents += toCents(it.Price) * int64(qty)
			continue
		}
		if it.ID == "" {
			return nil, 0, false, &ValidationError{Msg: "cart item missing id"}
		}
		if it.Quantity <= 0 {
			return nil, 0, false, &ValidationError{Msg: fmt.Sprintf("invalid quantity for product %s", it.ID)}
		}
		lines = append(lines, it)
	}
	return lines, shipCents, hasShip, nil
}

func isShippingLine(l CartLine) bool {
	return strings.EqualFold(l.Category, "shipping") || strings.EqualFold(l.ID, "shipping")
}

func toCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
