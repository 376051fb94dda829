package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo gates stock availability across concurrent checkout attempts.
// A reservation is a time-bound hold; stock itself only moves when an
// order is committed. Expired holds stop counting against availability
// the moment they expire, whether or not a sweep has deleted them.
type Repo struct{ DB *pgxpool.Pool }

// Reserve atomically checks availability and inserts a hold.
// Returns false (no error, no side effects) when stock minus active holds
// cannot cover qty. The product row lock serializes concurrent attempts on
// the same product, so two buyers can never both take the last unit.
func (r *Repo) Reserve(ctx context.Context, productID string, qty int, sessionID string, ttl time.Duration) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var stock int
	if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// unknown product reserves nothing
			return false, nil
		}
		return false, err
	}

	var held int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM stock_reservations
		WHERE product_id=$1 AND expires_at > now()`, productID).Scan(&held); err != nil {
		return false, err
	}

	if stock-held < qty {
		return false, nil // rollback via defer
	}

	// expiry uses the database clock so Reserve's availability check and the
	// hold's lifetime never disagree across app instances
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_reservations(session_id, product_id, qty, expires_at)
		VALUES ($1, $2, $3, now() + make_interval(secs => $4))`,
		sessionID, productID, qty, ttl.Seconds()); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Release drops every hold for a checkout attempt. Idempotent: releasing a
// session with no holds is a no-op.
func (r *Repo) Release(ctx context.Context, sessionID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM stock_reservations WHERE session_id=$1`, sessionID)
	return err
}

// SweepExpired deletes lapsed holds. Purely housekeeping: Reserve already
// ignores them, so correctness never depends on this running.
func (r *Repo) SweepExpired(ctx context.Context) (int64, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM stock_reservations WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// HeldQuantity reports the active (non-expired) hold total for a product.
func (r *Repo) HeldQuantity(ctx context.Context, productID string) (int, error) {
	var held int
	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM stock_reservations
		WHERE product_id=$1 AND expires_at > now()`, productID).Scan(&held)
	return held, err
}
