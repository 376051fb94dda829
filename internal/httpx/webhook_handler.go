package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	stripe "github.com/stripe/stripe-go/v79"

	"github.com/modavie/checkout-service/internal/checkout"
	kafkax "github.com/modavie/checkout-service/internal/kafka"
	"github.com/modavie/checkout-service/internal/orders"
	"github.com/modavie/checkout-service/internal/payments"
)

const maxWebhookBody = 1 << 20

type OrderCommitter interface {
	CommitOrder(ctx context.Context, in orders.CommitInput) (orderID string, existed bool, err error)
}

type UserResolver interface {
	IDByEmail(ctx context.Context, email string) (*string, error)
}

type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// WebhookHandler converts Stripe's checkout.session.completed callback into
// a durable order. Stripe redelivers on any non-2xx, so every failure after
// signature verification answers 500 and relies on CommitOrder being
// idempotent on the session id.
type WebhookHandler struct {
	Orders        OrderCommitter
	Users         UserResolver
	Producer      EventPublisher // optional
	WebhookSecret string
	ServiceName   string
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/stripe", h.handle)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	// signature covers the exact bytes on the wire; read before any decode
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	event, err := payments.VerifyEvent(payload, r.Header.Get("Stripe-Signature"), h.WebhookSecret)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	}

	if string(event.Type) != payments.EventCheckoutCompleted {
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "malformed session payload"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := h.process(ctx, event.ID, sess); err != nil {
		log.Printf("webhook %s: %v", event.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhookHandler) process(ctx context.Context, eventID string, sess stripe.CheckoutSession) error {
	// the metadata snapshot, not any live cart, reconstructs the order: the
	// cart may have changed or been cleared since the session was created
	var snapshot []checkout.SnapshotItem
	if err := json.Unmarshal([]byte(sess.Metadata[checkout.MetaCart]), &snapshot); err != nil {
		return fmt.Errorf("cart snapshot: %w", err)
	}
	if len(snapshot) == 0 {
		return errors.New("cart snapshot is empty")
	}

	email := sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		email = sess.CustomerDetails.Email
	}
	userID, err := h.Users.IDByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	items := make([]orders.CommitItem, 0, len(snapshot))
	var subtotal int64
	for _, si := range snapshot {
		items = append(items, orders.CommitItem{
			ProductID:      si.ID,
			Name:           si.Name,
			UnitPriceCents: si.Price,
			Qty:            si.Quantity,
		})
		subtotal += si.Price * int64(si.Quantity)
	}

	total := sess.AmountTotal // Stripe's charged amount wins when reported
	if total <= 0 {
		total = subtotal
	}

	var paymentIntentID string
	if sess.PaymentIntent != nil {
		paymentIntentID = sess.PaymentIntent.ID
	}

	orderID, existed, err := h.Orders.CommitOrder(ctx, orders.CommitInput{
		StripeSessionID:       sess.ID,
		StripePaymentIntentID: paymentIntentID,
		UserID:                userID,
		Currency:              string(sess.Currency),
		Items:                 items,
		SubtotalCents:         subtotal,
		TotalCents:            total,
		ShippingAddress:       sess.Metadata[checkout.MetaShippingAddress],
		ReservationID:         sess.Metadata[checkout.MetaReservationID],
	})
	if err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	if existed {
		log.Printf("webhook %s replayed: order %s already committed", eventID, orderID)
		return nil
	}

	if h.Producer != nil {
		h.publishOrderCreated(orderID, sess.ID, userID, snapshot, subtotal, total)
	}
	return nil
}

func (h *WebhookHandler) publishOrderCreated(orderID, sessionID string, userID *string, snapshot []checkout.SnapshotItem, subtotal, total int64) {
	items := make([]orders.ItemSnapshot, 0, len(snapshot))
	for _, si := range snapshot {
		items = append(items, orders.ItemSnapshot{
			ProductID:      si.ID,
			Name:           si.Name,
			UnitPriceCents: si.Price,
			Qty:            si.Quantity,
		})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.ServiceName,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:         orderID,
			StripeSessionID: sessionID,
			UserID:          userID,
			Items:           items,
			SubtotalCents:   subtotal,
			TotalCents:      total,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
