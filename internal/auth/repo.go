package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/academix-erp/academix/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindToken(ctx context.Context, tokenID string) (*APIToken, error)
	TouchToken(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindToken fetches a token row joined with its owning user.
func (r *PGRepository) FindToken(ctx context.Context, tokenID string) (*APIToken, error) {
	id, err := strconv.ParseInt(tokenID, 10, 64)
	if err != nil {
		return nil, shared.ErrNotFound
	}
	var token APIToken
	err = r.pool.QueryRow(ctx, `SELECT t.id, t.user_id, u.name, t.label, t.secret_hash, u.branch_id, t.is_active, t.created_at, t.last_used_at
FROM api_tokens t JOIN users u ON u.id = t.user_id WHERE t.id=$1`, id).
		Scan(&token.ID, &token.UserID, &token.UserName, &token.Label, &token.SecretHash,
			&token.BranchID, &token.IsActive, &token.CreatedAt, &token.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// TouchToken stamps the token's last use.
func (r *PGRepository) TouchToken(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at=NOW() WHERE id=$1`, id)
	return err
}

var _ Repository = (*PGRepository)(nil)
