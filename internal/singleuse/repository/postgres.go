package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"market-auth/backend/internal/singleuse/domain"
)

// PostgresRepository stores single-use tokens in single_use_tokens, one row per (owner_id, purpose).
// Expired rows are hidden from reads and removed by PurgeExpired.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a token repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindOneByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) (*domain.Token, error) {
	t := &domain.Token{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, purpose, token_hash, created_at, expires_at
		 FROM single_use_tokens
		 WHERE owner_id = $1 AND purpose = $2 AND expires_at > now()`,
		ownerID, string(purpose),
	).Scan(&t.ID, &t.OwnerID, &t.Purpose, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Create upserts on (owner_id, purpose) so concurrent issues for the same pair leave exactly one row.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.Token) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO single_use_tokens (id, owner_id, purpose, token_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (owner_id, purpose) DO UPDATE SET
		   id = EXCLUDED.id,
		   token_hash = EXCLUDED.token_hash,
		   created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at`,
		t.ID, t.OwnerID, string(t.Purpose), t.TokenHash, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByOwner(ctx context.Context, ownerID string, purpose domain.Purpose) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM single_use_tokens WHERE owner_id = $1 AND purpose = $2`, ownerID, string(purpose)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM single_use_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM single_use_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
