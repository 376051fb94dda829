package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) List(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, category, image, price_cents, stock, in_stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Image, &p.PriceCents,
			&p.Stock, &p.InStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, category, image, price_cents, stock, in_stock, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Category, &p.Image, &p.PriceCents,
			&p.Stock, &p.InStock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// PricesByID returns the authoritative unit price for each requested product.
// Ids absent from the result do not exist in the catalog.
func (r *Repo) PricesByID(ctx context.Context, ids []string) (map[string]int64, error) {
	if len(ids) == 0 {
		return map[string]int64{}, nil
	}
	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `SELECT id, price_cents FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make(map[string]int64, len(ids))
	for rows.Next() {
		var id string
		var cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			return nil, err
		}
		prices[id] = cents
	}
	return prices, rows.Err()
}

// StockByIDs reads live stock counts, used to refresh the worker's cache.
func (r *Repo) StockByIDs(ctx context.Context, ids []string) (map[string]int, error) {
	if len(ids) == 0 {
		return map[string]int{}, nil
	}
	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `SELECT id, stock FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int, len(ids))
	for rows.Next() {
		var id string
		var stock int
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, err
		}
		out[id] = stock
	}
	return out, rows.Err()
}

// Update applies an admin edit. The in_stock flag is always rewritten from
// the resulting stock so the derived invariant survives every mutation.
func (r *Repo) Update(ctx context.Context, id string, u UpdateParams) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET
			name        = COALESCE($2, name),
			category    = COALESCE($3, category),
			image       = COALESCE($4, image),
			price_cents = COALESCE($5, price_cents),
			stock       = COALESCE($6, stock),
			in_stock    = COALESCE($6, stock) > 0,
			updated_at  = now()
		WHERE id=$1
		RETURNING id, name, category, image, price_cents, stock, in_stock, created_at, updated_at`,
		id, u.Name, u.Category, u.Image, u.PriceCents, u.Stock).
		Scan(&p.ID, &p.Name, &p.Category, &p.Image, &p.PriceCents,
			&p.Stock, &p.InStock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}
