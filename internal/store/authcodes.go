package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Auth code purposes.
const (
	CodePurposeParent = "parent"
	CodePurposeCoach  = "coach"
)

const codeTTL = 10 * time.Minute

// AuthCode is a short-lived emailed verification code.
type AuthCode struct {
	ID        string
	Email     string
	Code      string
	Purpose   string
	TeamID    string
	ExpiresAt time.Time
}

// AuthCodeStore provides verification code rows.
type AuthCodeStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewAuthCodeStore(pool *pgxpool.Pool) *AuthCodeStore {
	return &AuthCodeStore{pool: pool, now: time.Now}
}

// Issue replaces any pending code for (email, purpose) with a fresh one.
func (s *AuthCodeStore) Issue(ctx context.Context, email, purpose, teamID string) (*AuthCode, error) {
	code, err := sixDigits()
	if err != nil {
		return nil, err
	}
	ac := &AuthCode{
		ID:        uuid.NewString(),
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		TeamID:    teamID,
		ExpiresAt: s.now().Add(codeTTL),
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM auth_codes WHERE email = $1 AND purpose = $2`, email, purpose); err != nil {
		return nil, fmt.Errorf("clearing stale codes: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO auth_codes (id, email, code, purpose, team_id, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ac.ID, ac.Email, ac.Code, ac.Purpose, ac.TeamID, ac.ExpiresAt); err != nil {
		return nil, fmt.Errorf("inserting code: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing tx: %w", err)
	}
	return ac, nil
}

// Consume validates and burns a code in one statement. Wrong, expired, and
// already-used codes all come back as ErrNotFound; callers must not reveal
// which.
func (s *AuthCodeStore) Consume(ctx context.Context, email, code, purpose string) (*AuthCode, error) {
	var ac AuthCode
	err := s.pool.QueryRow(ctx,
		`DELETE FROM auth_codes
		 WHERE email = $1 AND code = $2 AND purpose = $3 AND expires_at > $4
		 RETURNING id, email, code, purpose, team_id, expires_at`,
		email, code, purpose, s.now()).
		Scan(&ac.ID, &ac.Email, &ac.Code, &ac.Purpose, &ac.TeamID, &ac.ExpiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &ac, nil
}

func sixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
