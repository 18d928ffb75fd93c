package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a coach account. Parents never get one; their invite token is
// their whole identity.
type User struct {
	ID            string
	Email         string
	UserToken     string
	CoachVerified bool
	CreatedAt     time.Time
}

// UserStore provides coach account rows.
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, email, user_token, coach_verified, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.UserToken, &u.CoachVerified, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetOrCreateByEmail returns the account for email, creating it with a
// fresh user token on first sign-in.
func (s *UserStore) GetOrCreateByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`INSERT INTO users (id, email, user_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING %s`, userColumns)
	row := s.pool.QueryRow(ctx, query, uuid.NewString(), email, newToken())
	return scanUser(row)
}

// GetByToken resolves a user token.
func (s *UserStore) GetByToken(ctx context.Context, userToken string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE user_token = $1`, userColumns)
	return scanUser(s.pool.QueryRow(ctx, query, userToken))
}

// GetByID fetches one account.
func (s *UserStore) GetByID(ctx context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

// MarkCoachVerified records a successful setup-key verification.
func (s *UserStore) MarkCoachVerified(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET coach_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking coach verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
