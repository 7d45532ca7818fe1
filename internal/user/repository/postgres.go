package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"market-auth/backend/internal/db"
	"market-auth/backend/internal/user/domain"
)

// PostgresRepository persists users in the users table and their refresh-token digests in
// user_refresh_tokens.
type PostgresRepository struct {
	db   *sql.DB
	nowF func() time.Time
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, nowF: time.Now}
}

const selectUser = `SELECT id, name, email, password_hash, verified, created_at, updated_at FROM users`

// GetByID returns the user for id with its refresh set, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = $1`, id)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, selectUser+` WHERE email = $1`, domain.NormalizeEmail(email))
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	tokens, err := r.refreshTokens(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.RefreshTokens = tokens
	return u, nil
}

func (r *PostgresRepository) refreshTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT token_digest FROM user_refresh_tokens WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Create inserts the user. The user must have ID set. Returns ErrDuplicateEmail when the email is taken.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Verified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateFields applies the non-nil fields of patch and bumps updated_at.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id string, patch domain.Patch) (bool, error) {
	if patch.Empty() {
		u, err := r.GetByID(ctx, id)
		return u != nil, err
	}
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.Verified != nil {
		add("verified", *patch.Verified)
	}
	add("updated_at", r.nowF().UTC())
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// Save upserts the user's profile fields and credential. The refresh set is managed only through
// AddRefreshToken, RemoveRefreshToken and ClearRefreshTokens.
func (r *PostgresRepository) Save(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = r.nowF().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   email = EXCLUDED.email,
		   password_hash = EXCLUDED.password_hash,
		   verified = EXCLUDED.verified,
		   updated_at = EXCLUDED.updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Verified, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// AddRefreshToken inserts digest into the user's set; an existing digest is left as is.
func (r *PostgresRepository) AddRefreshToken(ctx context.Context, userID, digest string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_refresh_tokens (user_id, token_digest, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, token_digest) DO NOTHING`,
		userID, digest, r.nowF().UTC())
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RemoveRefreshToken deletes digest from the user's set in one statement. Of two concurrent calls
// for the same digest exactly one reports true.
func (r *PostgresRepository) RemoveRefreshToken(ctx context.Context, userID, digest string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_refresh_tokens WHERE user_id = $1 AND token_digest = $2`, userID, digest)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// ClearRefreshTokens deletes every refresh digest stored for userID.
func (r *PostgresRepository) ClearRefreshTokens(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
