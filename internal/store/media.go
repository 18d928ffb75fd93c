package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Media is one registered media asset.
type Media struct {
	ID          string
	TeamID      string
	ObjectKey   string
	Filename    string
	ContentType string
	SizeBytes   int64
	AlbumName   string
	OwnerUserID string
	ThumbKey    string
	CreatedAt   time.Time
}

// MediaStore provides media rows with keyset pagination.
type MediaStore struct {
	pool *pgxpool.Pool
}

func NewMediaStore(pool *pgxpool.Pool) *MediaStore {
	return &MediaStore{pool: pool}
}

const mediaColumns = `id, team_id, object_key, filename, content_type,
	size_bytes, album_name, uploader_user_id, thumb_key, created_at`

func scanMedia(row pgx.Row) (*Media, error) {
	var m Media
	err := row.Scan(
		&m.ID,
		&m.TeamID,
		&m.ObjectKey,
		&m.Filename,
		&m.ContentType,
		&m.SizeBytes,
		&m.AlbumName,
		&m.OwnerUserID,
		&m.ThumbKey,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// Create registers a completed upload.
func (s *MediaStore) Create(ctx context.Context, m Media) (*Media, error) {
	query := fmt.Sprintf(`INSERT INTO media
		(id, team_id, object_key, filename, content_type, size_bytes,
		 album_name, uploader_user_id, thumb_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, mediaColumns)
	row := s.pool.QueryRow(ctx, query,
		m.ID, m.TeamID, m.ObjectKey, m.Filename, m.ContentType, m.SizeBytes,
		m.AlbumName, m.OwnerUserID, m.ThumbKey)
	return scanMedia(row)
}

// GetByID fetches one asset.
func (s *MediaStore) GetByID(ctx context.Context, id string) (*Media, error) {
	query := fmt.Sprintf(`SELECT %s FROM media WHERE id = $1`, mediaColumns)
	return scanMedia(s.pool.QueryRow(ctx, query, id))
}

// ListByTeam returns one page of a team's media, newest first, with an
// opaque cursor for the next page.
func (s *MediaStore) ListByTeam(ctx context.Context, teamID, cursor string, limit int) ([]Media, string, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM media WHERE team_id = $1`, mediaColumns)
	args := []any{teamID}
	if cursor != "" {
		createdAt, id, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, createdAt, id)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("listing media: %w", err)
	}
	defer rows.Close()

	var items []Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, "", err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	next := ""
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		next = encodeCursor(last.CreatedAt, last.ID)
	}
	return items, next, nil
}

// SetThumbKey records the generated thumbnail for an asset.
func (s *MediaStore) SetThumbKey(ctx context.Context, id, thumbKey string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE media SET thumb_key = $1 WHERE id = $2`, thumbKey, id)
	if err != nil {
		return fmt.Errorf("setting thumb key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMissingThumbs returns image assets awaiting a thumbnail.
func (s *MediaStore) ListMissingThumbs(ctx context.Context, limit int) ([]Media, error) {
	query := fmt.Sprintf(`SELECT %s FROM media
		WHERE thumb_key = '' AND content_type LIKE 'image/%%'
		ORDER BY created_at ASC LIMIT %d`, mediaColumns, limit)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing missing thumbs: %w", err)
	}
	defer rows.Close()

	var items []Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	return items, rows.Err()
}

// Delete removes an asset row.
func (s *MediaStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting media: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// encodeCursor produces a base64 keyset cursor from a timestamp and id.
func encodeCursor(createdAt time.Time, id string) string {
	raw := fmt.Sprintf("%s|%s", createdAt.Format(time.RFC3339Nano), id)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses a base64 keyset cursor.
func decodeCursor(cursor string) (time.Time, string, error) {
	data, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decoding cursor: %w", err)
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parsing cursor timestamp: %w", err)
	}
	return createdAt, parts[1], nil
}
