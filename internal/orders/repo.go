package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

type CommitItem struct {
	ProductID      string
	Name           string
	Image          *string
	UnitPriceCents int64
	Qty            int
}

// CommitInput is everything the webhook reconstructs from session metadata
// plus the provider's authoritative identifiers and charged amount.
type CommitInput struct {
	StripeSessionID       string
	StripePaymentIntentID string
	UserID                *string
	Currency              string
	Items                 []CommitItem
	SubtotalCents         int64
	TotalCents            int64
	ShippingAddress       string // raw JSON, may be empty
	ReservationID         string
}

// CommitOrder materializes a paid checkout session exactly once.
//
// One transaction covers the whole commit: existing-order check by stripe
// session id, order + item inserts, stock decrement (floored at zero, with
// the in_stock flag re-derived), and release of the reservation holds. A
// replayed webhook therefore either short-circuits on the check or loses
// the unique-index race on stripe_session_id, and in both cases is answered
// with the already-committed order id.
func (r *Repo) CommitOrder(ctx context.Context, in CommitInput) (orderID string, existed bool, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `SELECT id FROM orders WHERE stripe_session_id=$1`, in.StripeSessionID).Scan(&orderID)
	if err == nil {
		return orderID, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	orderID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, payment_status, subtotal_cents, total_cents,
		                   currency, shipping_address, stripe_session_id, stripe_payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,'')::jsonb, $9, $10)`,
		orderID, in.UserID, StatusProcessing, PayPaid, in.SubtotalCents, in.TotalCents,
		in.Currency, in.ShippingAddress, in.StripeSessionID, in.StripePaymentIntentID)
	if err != nil {
		if id, ok := r.existingOnConflict(ctx, err, in.StripeSessionID); ok {
			return id, true, nil
		}
		return "", false, err
	}

	for _, it := range in.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, image, unit_price_cents, qty)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, it.ProductID, it.Name, it.Image, it.UnitPriceCents, it.Qty); err != nil {
			return "", false, err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products SET
				stock      = GREATEST(stock - $2, 0),
				in_stock   = GREATEST(stock - $2, 0) > 0,
				updated_at = now()
			WHERE id=$1`, it.ProductID, it.Qty); err != nil {
			return "", false, err
		}
	}

	if in.ReservationID != "" {
		if _, err := tx.Exec(ctx, `DELETE FROM stock_reservations WHERE session_id=$1`, in.ReservationID); err != nil {
			return "", false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if id, ok := r.existingOnConflict(ctx, err, in.StripeSessionID); ok {
			return id, true, nil
		}
		return "", false, err
	}
	return orderID, false, nil
}

// existingOnConflict resolves a lost insert race on the stripe_session_id
// unique index to the order the winning webhook delivery committed.
func (r *Repo) existingOnConflict(ctx context.Context, err error, sessionID string) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	var id string
	if qerr := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE stripe_session_id=$1`, sessionID).Scan(&id); qerr != nil {
		return "", false
	}
	return id, true
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	var o Order
	var addr *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, payment_status, subtotal_cents, total_cents,
		       currency, shipping_address::text, stripe_session_id,
		       COALESCE(stripe_payment_intent_id, ''), created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.SubtotalCents, &o.TotalCents,
			&o.Currency, &addr, &o.StripeSessionID, &o.StripePaymentIntentID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if addr != nil {
		o.ShippingAddress = *addr
	}
	return o, nil
}

func (r *Repo) GetStatus(ctx context.Context, orderID string) (Status, PayStatus, error) {
	var s, p string
	err := r.DB.QueryRow(ctx, `SELECT status, payment_status FROM orders WHERE id=$1`, orderID).Scan(&s, &p)
	if err != nil {
		return "", "", err
	}
	return Status(s), PayStatus(p), nil
}

func (r *Repo) ListItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, name, image, unit_price_cents, qty
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Image, &it.UnitPriceCents, &it.Qty); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
