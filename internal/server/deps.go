package server

import (
	"context"
	"log/slog"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/store"
)

// Store interfaces. The concrete pgx stores satisfy them; handler tests use
// in-memory fakes.

type TeamStore interface {
	Create(ctx context.Context, name, teamCode string) (*store.Team, error)
	GetByID(ctx context.Context, id string) (*store.Team, error)
	GetByCode(ctx context.Context, teamCode string) (*store.Team, error)
	ListForCoach(ctx context.Context, userID string) ([]store.Team, error)
	AddCoach(ctx context.Context, userID, teamID, role string) error
	CoachRole(ctx context.Context, userID, teamID string) (string, error)
	Rename(ctx context.Context, id, name string) (*store.Team, error)
	SoftDelete(ctx context.Context, id string) (*store.Team, error)
}

type InviteStore interface {
	Create(ctx context.Context, teamID, email, role string) (*store.Invite, error)
	GetByToken(ctx context.Context, token string) (*store.Invite, error)
	GetForMember(ctx context.Context, teamID, email string) (*store.Invite, error)
	Revoke(ctx context.Context, id string) error
	RevokeForTeam(ctx context.Context, teamID string) error
}

type UserStore interface {
	GetOrCreateByEmail(ctx context.Context, email string) (*store.User, error)
	GetByToken(ctx context.Context, userToken string) (*store.User, error)
	GetByID(ctx context.Context, id string) (*store.User, error)
	MarkCoachVerified(ctx context.Context, id string) error
}

type CodeStore interface {
	Issue(ctx context.Context, email, purpose, teamID string) (*store.AuthCode, error)
	Consume(ctx context.Context, email, code, purpose string) (*store.AuthCode, error)
}

type MediaStore interface {
	Create(ctx context.Context, m store.Media) (*store.Media, error)
	GetByID(ctx context.Context, id string) (*store.Media, error)
	ListByTeam(ctx context.Context, teamID, cursor string, limit int) ([]store.Media, string, error)
	Delete(ctx context.Context, id string) error
}

// ObjectDeleter removes stored blobs when their media row goes away.
type ObjectDeleter interface {
	Delete(key string) error
}

// AuditRecorder buffers one audit event.
type AuditRecorder interface {
	Record(ev audit.Event)
}

// Mailer delivers verification codes. Production would back this with an
// email provider; the log mailer covers local development and tests.
type Mailer interface {
	SendCode(ctx context.Context, email, code, teamName string) error
}

// LogMailer writes codes to the log instead of sending mail.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendCode(ctx context.Context, email, code, teamName string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("verification code issued", "email", email, "code", code, "team", teamName)
	return nil
}
