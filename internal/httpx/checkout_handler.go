package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modavie/checkout-service/internal/checkout"
)

type SessionInitiator interface {
	CreateSession(ctx context.Context, req checkout.Request) (checkout.Session, error)
}

type CheckoutHandler struct {
	Service SessionInitiator
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout/sessions", h.createSession)
}

func (h *CheckoutHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	sess, err := h.Service.CreateSession(ctx, req)
	if err != nil {
		code, body := checkoutErrorBody(err)
		writeJSON(w, code, body)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// checkoutErrorBody maps the checkout failure taxonomy onto responses the
// storefront shows inline. Anything outside the taxonomy is an internal
// failure and stays opaque.
func checkoutErrorBody(err error) (int, map[string]any) {
	var ve *checkout.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, map[string]any{"error": ve.Msg}
	}
	var ise *checkout.InsufficientStockError
	if errors.As(err, &ise) {
		return http.StatusBadRequest, map[string]any{
			"error": "insufficient stock",
			"details": map[string]any{
				"productId": ise.ProductID,
				"name":      ise.Name,
				"requested": ise.Requested,
			},
		}
	}
	var pie *checkout.PriceIntegrityError
	if errors.As(err, &pie) {
		return http.StatusBadRequest, map[string]any{
			"error": "shipping cost mismatch",
			"details": map[string]any{
				"submittedCents": pie.ClientCents,
				"computedCents":  pie.ServerCents,
			},
		}
	}
	return http.StatusInternalServerError, map[string]any{"error": "checkout failed"}
}
