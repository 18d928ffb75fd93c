package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Team is one private team. Deleted teams stay in the table with DeletedAt
// set and disappear from every lookup.
type Team struct {
	ID        string
	Name      string
	TeamCode  string
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
}

// TeamStore provides team rows.
type TeamStore struct {
	pool *pgxpool.Pool
}

func NewTeamStore(pool *pgxpool.Pool) *TeamStore {
	return &TeamStore{pool: pool}
}

const teamColumns = `id, name, team_code, created_at, updated_at, deleted_at`

func scanTeam(row pgx.Row) (*Team, error) {
	var t Team
	if err := row.Scan(&t.ID, &t.Name, &t.TeamCode, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// Create inserts a team. The team code is the human-shareable join code and
// must be unique.
func (s *TeamStore) Create(ctx context.Context, name, teamCode string) (*Team, error) {
	query := fmt.Sprintf(`INSERT INTO teams (id, name, team_code) VALUES ($1, $2, $3) RETURNING %s`, teamColumns)
	row := s.pool.QueryRow(ctx, query, uuid.NewString(), name, teamCode)
	return scanTeam(row)
}

// GetByID fetches one team.
func (s *TeamStore) GetByID(ctx context.Context, id string) (*Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE id = $1 AND deleted_at IS NULL`, teamColumns)
	return scanTeam(s.pool.QueryRow(ctx, query, id))
}

// GetByCode fetches a team by its join code.
func (s *TeamStore) GetByCode(ctx context.Context, teamCode string) (*Team, error) {
	query := fmt.Sprintf(`SELECT %s FROM teams WHERE team_code = $1 AND deleted_at IS NULL`, teamColumns)
	return scanTeam(s.pool.QueryRow(ctx, query, teamCode))
}

// Rename updates the team's display name.
func (s *TeamStore) Rename(ctx context.Context, id, name string) (*Team, error) {
	query := fmt.Sprintf(`UPDATE teams SET name = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL RETURNING %s`, teamColumns)
	return scanTeam(s.pool.QueryRow(ctx, query, id, name))
}

// SoftDelete marks the team deleted and returns the final row. The caller
// revokes the team's invites separately.
func (s *TeamStore) SoftDelete(ctx context.Context, id string) (*Team, error) {
	query := fmt.Sprintf(`UPDATE teams SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL RETURNING %s`, teamColumns)
	return scanTeam(s.pool.QueryRow(ctx, query, id))
}

// ListForCoach returns the teams a coach administers, newest first.
func (s *TeamStore) ListForCoach(ctx context.Context, userID string) ([]Team, error) {
	query := `SELECT t.id, t.name, t.team_code, t.created_at, t.updated_at, t.deleted_at FROM teams t
		JOIN coach_teams ct ON ct.team_id = t.id
		WHERE ct.user_id = $1 AND t.deleted_at IS NULL
		ORDER BY t.created_at DESC`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing coach teams: %w", err)
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

// AddCoach links a coach to a team with the given role.
func (s *TeamStore) AddCoach(ctx context.Context, userID, teamID, role string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO coach_teams (user_id, team_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, team_id) DO UPDATE SET role = EXCLUDED.role`,
		userID, teamID, role)
	if err != nil {
		return fmt.Errorf("linking coach to team: %w", err)
	}
	return nil
}

// CoachRole returns the coach's role on the team, or ErrNotFound.
func (s *TeamStore) CoachRole(ctx context.Context, userID, teamID string) (string, error) {
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM coach_teams WHERE user_id = $1 AND team_id = $2`,
		userID, teamID).Scan(&role)
	if err != nil {
		return "", notFound(err)
	}
	return role, nil
}
