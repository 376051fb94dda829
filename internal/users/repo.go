package users

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// IDByEmail resolves a payer email to a user id. No match (or empty email)
// returns nil with no error: the order proceeds as a guest order.
func (r *Repo) IDByEmail(ctx context.Context, email string) (*string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, nil
	}
	var id string
	err := r.DB.QueryRow(ctx, `SELECT id FROM users WHERE lower(email)=$1`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}
