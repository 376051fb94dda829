package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modavie/checkout-service/internal/checkout"
)

type fakeInitiator struct {
	sess checkout.Session
	err  error
	last *checkout.Request
}

func (f *fakeInitiator) CreateSession(ctx context.Context, req checkout.Request) (checkout.Session, error) {
	f.last = &req
	if f.err != nil {
		return checkout.Session{}, f.err
	}
	return f.sess, nil
}

func postCheckout(h *CheckoutHandler, body string) *httptest.ResponseRecorder {
	r := NewRouter()
	h.Register(r)
	req := httptest.NewRequest(http.MethodPost, "/checkout/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestCheckoutInvalidJSON(t *testing.T) {
	h := &CheckoutHandler{Service: &fakeInitiator{}}
	rr := postCheckout(h, "{nope")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}

func TestCheckoutSuccess(t *testing.T) {
	f := &fakeInitiator{sess: checkout.Session{SessionID: "cs_1", URL: "https://stripe.test/cs_1"}}
	h := &CheckoutHandler{Service: f}

	rr := postCheckout(h, `{"items":[{"id":"p1","name":"Shirt","price":25,"quantity":1}],"successUrl":"https://shop.test/ok","cancelUrl":"https://shop.test/no"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got checkout.Session
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.SessionID != "cs_1" || got.URL == "" {
		t.Fatalf("bad response: %+v", got)
	}
	if f.last == nil || len(f.last.Items) != 1 {
		t.Fatalf("request not forwarded: %+v", f.last)
	}
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"validation", &checkout.ValidationError{Msg: "cart is empty"}, http.StatusBadRequest, "cart is empty"},
		{"stock", &checkout.InsufficientStockError{ProductID: "p2", Name: "Coat", Requested: 3}, http.StatusBadRequest, "insufficient stock"},
		{"integrity", &checkout.PriceIntegrityError{ClientCents: 50, ServerCents: 1000}, http.StatusBadRequest, "shipping cost mismatch"},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError, "checkout failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &CheckoutHandler{Service: &fakeInitiator{err: tc.err}}
			rr := postCheckout(h, `{"items":[{"id":"p1","quantity":1}]}`)
			if rr.Code != tc.wantCode {
				t.Fatalf("want %d, got %d", tc.wantCode, rr.Code)
			}
			var body map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] != tc.wantErr {
				t.Fatalf("want error %q, got %v", tc.wantErr, body["error"])
			}
		})
	}
}

func TestCheckoutStockErrorNamesProduct(t *testing.T) {
	h := &CheckoutHandler{Service: &fakeInitiator{err: &checkout.InsufficientStockError{ProductID: "p2", Name: "Coat", Requested: 3}}}
	rr := postCheckout(h, `{"items":[{"id":"p2","quantity":3}]}`)

	var body struct {
		Details struct {
			ProductID string `json:"productId"`
			Requested int    `json:"requested"`
		} `json:"details"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Details.ProductID != "p2" || body.Details.Requested != 3 {
		t.Fatalf("details must name the offending item: %+v", body)
	}
}

// Browser preflight must pass without auth or validation.
func TestCheckoutPreflightAccepted(t *testing.T) {
	h := &CheckoutHandler{Service: &fakeInitiator{}}
	r := NewRouter()
	h.Register(r)

	req := httptest.NewRequest(http.MethodOptions, "/checkout/sessions", nil)
	req.Header.Set("Origin", "https://shop.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code >= 400 {
		t.Fatalf("preflight rejected: %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("missing CORS allow-origin header")
	}
}
