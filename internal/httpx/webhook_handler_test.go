package httpx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/modavie/checkout-service/internal/checkout"
	"github.com/modavie/checkout-service/internal/orders"
)

const testSecret = "whsec_test_secret"

type fakeCommitter struct {
	mu        sync.Mutex
	bySession map[string]string
	creates   int
	last      *orders.CommitInput
	err       error
}

func newFakeCommitter() *fakeCommitter {
	return &fakeCommitter{bySession: make(map[string]string)}
}

func (f *fakeCommitter) CommitOrder(ctx context.Context, in orders.CommitInput) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if id, ok := f.bySession[in.StripeSessionID]; ok {
		return id, true, nil
	}
	f.creates++
	f.last = &in
	id := fmt.Sprintf("ord-%d", f.creates)
	f.bySession[in.StripeSessionID] = id
	return id, false, nil
}

type fakeUsers struct{ id *string }

func (f *fakeUsers) IDByEmail(ctx context.Context, email string) (*string, error) {
	if email == "" {
		return nil, nil
	}
	return f.id, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	values [][]byte
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = append(f.values, value)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values)
}

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func completedEvent(t *testing.T, sessionID string) []byte {
	t.Helper()
	snapshot := []checkout.SnapshotItem{
		{ID: "p1", Name: "Linen Shirt", Price: 2500, Quantity: 2, Category: "tops"},
		{ID: "p2", Name: "Wool Coat", Price: 4900, Quantity: 1, Category: "outerwear"},
	}
	cart, _ := json.Marshal(snapshot)

	session := map[string]any{
		"id":             sessionID,
		"object":         "checkout.session",
		"amount_total":   10900,
		"currency":       "usd",
		"customer_email": "buyer@shop.test",
		"customer_details": map[string]any{
			"email": "buyer@shop.test",
		},
		"payment_intent": "pi_test_42",
		"metadata": map[string]string{
			checkout.MetaCart:            string(cart),
			checkout.MetaShippingAddress: `{"line1":"1 Rue Cler","city":"Paris"}`,
			checkout.MetaReservationID:   "res-abc",
		},
	}
	event := map[string]any{
		"id":   "evt_" + sessionID,
		"type": "checkout.session.completed",
		"data": map[string]any{"object": session},
	}
	b, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newWebhookRouter(committer *fakeCommitter, pub *fakePublisher) *chi.Mux {
	uid := "user-7"
	h := &WebhookHandler{
		Orders:        committer,
		Users:         &fakeUsers{id: &uid},
		Producer:      pub,
		WebhookSecret: testSecret,
		ServiceName:   "checkout-api-test",
	}
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func deliver(r http.Handler, payload []byte, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestWebhookMissingSignature(t *testing.T) {
	committer := newFakeCommitter()
	r := newWebhookRouter(committer, &fakePublisher{})

	rr := deliver(r, completedEvent(t, "cs_1"), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
	if committer.creates != 0 {
		t.Fatal("unsigned event must not create an order")
	}
}

func TestWebhookTamperedBody(t *testing.T) {
	committer := newFakeCommitter()
	r := newWebhookRouter(committer, &fakePublisher{})

	payload := completedEvent(t, "cs_1")
	sig := signPayload(payload, testSecret)
	tampered := bytes.Replace(payload, []byte(`"amount_total":10900`), []byte(`"amount_total":1`), 1)

	rr := deliver(r, tampered, sig)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
	if committer.creates != 0 {
		t.Fatal("tampered event must not create an order")
	}
}

func TestWebhookWrongSecret(t *testing.T) {
	committer := newFakeCommitter()
	r := newWebhookRouter(committer, &fakePublisher{})

	payload := completedEvent(t, "cs_1")
	rr := deliver(r, payload, signPayload(payload, "whsec_other"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	committer := newFakeCommitter()
	r := newWebhookRouter(committer, &fakePublisher{})

	payload := []byte(`{"id":"evt_x","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	rr := deliver(r, payload, signPayload(payload, testSecret))
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200 ack, got %d", rr.Code)
	}
	if committer.creates != 0 {
		t.Fatal("non-completion events must not create orders")
	}
}

func TestWebhookCommitsOrder(t *testing.T) {
	committer := newFakeCommitter()
	pub := &fakePublisher{}
	r := newWebhookRouter(committer, pub)

	payload := completedEvent(t, "cs_42")
	rr := deliver(r, payload, signPayload(payload, testSecret))
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rr.Code, rr.Body.String())
	}

	in := committer.last
	if in == nil {
		t.Fatal("order not committed")
	}
	if in.StripeSessionID != "cs_42" || in.StripePaymentIntentID != "pi_test_42" {
		t.Fatalf("provider ids not captured: %+v", in)
	}
	if len(in.Items) != 2 || in.Items[0].ProductID != "p1" || in.Items[0].Qty != 2 {
		t.Fatalf("cart not reconstructed from metadata: %+v", in.Items)
	}
	if in.SubtotalCents != 2*2500+4900 {
		t.Fatalf("subtotal: got %d", in.SubtotalCents)
	}
	if in.TotalCents != 10900 {
		t.Fatalf("total must come from the provider's charged amount, got %d", in.TotalCents)
	}
	if in.UserID == nil || *in.UserID != "user-7" {
		t.Fatalf("payer email not resolved: %v", in.UserID)
	}
	if in.ReservationID != "res-abc" {
		t.Fatalf("reservation id not carried: %q", in.ReservationID)
	}
	if in.ShippingAddress == "" {
		t.Fatal("shipping address missing")
	}

	if pub.count() != 1 {
		t.Fatalf("want exactly one order.created event, got %d", pub.count())
	}
	var env orders.Envelope
	if err := json.Unmarshal(pub.values[0], &env); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.EventType != orders.EventOrderCreated {
		t.Fatalf("bad event type %q", env.EventType)
	}
}

// Stripe redelivers on retry; a replay must not create a second order or a
// second event.
func TestWebhookReplayIsIdempotent(t *testing.T) {
	committer := newFakeCommitter()
	pub := &fakePublisher{}
	r := newWebhookRouter(committer, pub)

	payload := completedEvent(t, "cs_42")
	for i := 0; i < 2; i++ {
		rr := deliver(r, payload, signPayload(payload, testSecret))
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: want 200, got %d", i+1, rr.Code)
		}
	}
	if committer.creates != 1 {
		t.Fatalf("want exactly one order, got %d", committer.creates)
	}
	if pub.count() != 1 {
		t.Fatalf("replay must not republish, got %d events", pub.count())
	}
}

func TestWebhookPersistenceFailureIs500(t *testing.T) {
	committer := newFakeCommitter()
	committer.err = errors.New("insert failed")
	r := newWebhookRouter(committer, &fakePublisher{})

	payload := completedEvent(t, "cs_1")
	rr := deliver(r, payload, signPayload(payload, testSecret))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("persistence failure must trigger provider retry via 500, got %d", rr.Code)
	}
}

func TestWebhookRejectsEmptySnapshot(t *testing.T) {
	committer := newFakeCommitter()
	r := newWebhookRouter(committer, &fakePublisher{})

	session := map[string]any{
		"id":       "cs_empty",
		"metadata": map[string]string{checkout.MetaCart: "[]"},
	}
	payload, _ := json.Marshal(map[string]any{
		"id":   "evt_empty",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": session},
	})
	rr := deliver(r, payload, signPayload(payload, testSecret))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rr.Code)
	}
	if committer.creates != 0 {
		t.Fatal("empty snapshot must not create an order")
	}
}
