package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Invite is a capability token binding a member to a team with a role.
// Parents hold one as their session; coaches receive an admin invite per
// team so their uploads route through the same path.
type Invite struct {
	ID        string
	TeamID    string
	Token     string
	Email     string
	Role      string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// InviteStore provides invite rows.
type InviteStore struct {
	pool *pgxpool.Pool
}

func NewInviteStore(pool *pgxpool.Pool) *InviteStore {
	return &InviteStore{pool: pool}
}

const inviteColumns = `id, team_id, token, email, role, created_at, revoked_at`

func scanInvite(row pgx.Row) (*Invite, error) {
	var in Invite
	if err := row.Scan(&in.ID, &in.TeamID, &in.Token, &in.Email, &in.Role, &in.CreatedAt, &in.RevokedAt); err != nil {
		return nil, notFound(err)
	}
	return &in, nil
}

// Create mints an invite with a fresh random token.
func (s *InviteStore) Create(ctx context.Context, teamID, email, role string) (*Invite, error) {
	query := fmt.Sprintf(`INSERT INTO invites (id, team_id, token, email, role)
		VALUES ($1, $2, $3, $4, $5) RETURNING %s`, inviteColumns)
	row := s.pool.QueryRow(ctx, query, uuid.NewString(), teamID, newToken(), email, role)
	return scanInvite(row)
}

// GetByToken resolves an invite token, the hot path of every authenticated
// request.
func (s *InviteStore) GetByToken(ctx context.Context, token string) (*Invite, error) {
	query := fmt.Sprintf(`SELECT %s FROM invites WHERE token = $1`, inviteColumns)
	return scanInvite(s.pool.QueryRow(ctx, query, token))
}

// GetForMember returns the live invite for an email on a team, if any.
// Revoked invites are invisible here so a revoked member who re-joins gets
// a fresh token.
func (s *InviteStore) GetForMember(ctx context.Context, teamID, email string) (*Invite, error) {
	query := fmt.Sprintf(`SELECT %s FROM invites WHERE team_id = $1 AND email = $2 AND revoked_at IS NULL`, inviteColumns)
	return scanInvite(s.pool.QueryRow(ctx, query, teamID, email))
}

// Revoke marks one invite revoked. Revoking an already-revoked or unknown
// invite returns ErrNotFound.
func (s *InviteStore) Revoke(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invites SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoking invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeForTeam revokes every live invite on a team, used when the team
// itself goes away.
func (s *InviteStore) RevokeForTeam(ctx context.Context, teamID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE invites SET revoked_at = now() WHERE team_id = $1 AND revoked_at IS NULL`, teamID)
	if err != nil {
		return fmt.Errorf("revoking team invites: %w", err)
	}
	return nil
}

// newToken returns a 64-character hex capability token.
func newToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
