package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/modavie/checkout-service/internal/catalog"
	"github.com/modavie/checkout-service/internal/redisx"
)

type ProductsHandler struct {
	Catalog *catalog.Repo
	Redis   *redis.Client
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Put("/products/{id}", h.update)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if s, err := h.Redis.Get(ctx, redisx.KeyProductList).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	b, _ := json.Marshal(ps)
	_ = h.Redis.Set(ctx, redisx.KeyProductList, b, redisx.TTLProductList).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.Get(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updateProductReq struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	Image      *string `json:"image,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
}

// update is the server side of the admin product editor. The in_stock flag
// is never accepted from the client; the repo derives it from stock.
func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PriceCents != nil && *req.PriceCents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must not be negative"})
		return
	}
	if req.Stock != nil && *req.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stock must not be negative"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Catalog.Update(ctx, chi.URLParam(r, "id"), catalog.UpdateParams{
		Name:       req.Name,
		Category:   req.Category,
		Image:      req.Image,
		PriceCents: req.PriceCents,
		Stock:      req.Stock,
	})
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// stale caches would show pre-edit stock/price
	_ = h.Redis.Del(ctx, redisx.KeyProductList).Err()
	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyProductStock, p.ID), p.Stock, redisx.TTLStockCache).Err()

	writeJSON(w, http.StatusOK, p)
}
