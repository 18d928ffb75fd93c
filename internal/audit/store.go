package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists audit events in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// BatchInsert writes a batch of events in one round trip.
func (s *Store) BatchInsert(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(
			`INSERT INTO audit_events (at, actor, action, team_id, target, details)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.At, ev.Actor, ev.Action, ev.TeamID, ev.Target, ev.Details)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting audit event: %w", err)
		}
	}
	return nil
}

// Recent returns the latest events for a team, newest first.
func (s *Store) Recent(ctx context.Context, teamID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT at, actor, action, team_id, target, details FROM audit_events
		 WHERE team_id = $1 ORDER BY at DESC LIMIT $2`, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.At, &ev.Actor, &ev.Action, &ev.TeamID, &ev.Target, &ev.Details); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
