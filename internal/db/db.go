package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"content-empire/manager-go/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

type Video struct {
	ID        int64
	Title     string
	Status    *string
	Kind      *string
	Meta      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewStore(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Pool exposes the underlying connection pool for migrations.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) GetVideoByID(ctx context.Context, id int64) (Video, error) {
	utils.Debug("db get video", "id", id)
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, status, kind, meta, created_at, updated_at
		FROM videos
		WHERE id = $1
	`, id)

	var v Video
	err := row.Scan(
		&v.ID,
		&v.Title,
		&v.Status,
		&v.Kind,
		&v.Meta,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}

func (s *Store) FindFirstVideo(ctx context.Context, where string, args ...any) (Video, error) {
	query := `
		SELECT id, title, status, kind, meta, created_at, updated_at
		FROM videos
		` + where + `
		ORDER BY id
		LIMIT 1
	`
	utils.Debug("db find first video", "query", strings.TrimSpace(query), "args", args)
	row := s.pool.QueryRow(ctx, query, args...)
	var v Video
	err := row.Scan(
		&v.ID,
		&v.Title,
		&v.Status,
		&v.Kind,
		&v.Meta,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Video{}, nil
		}
		return Video{}, err
	}
	return v, nil
}

func (s *Store) CountVideos(ctx context.Context, where string, args ...any) (int, error) {
	query := `SELECT COUNT(*) FROM videos ` + where
	utils.Debug("db count videos", "query", strings.TrimSpace(query), "args", args)
	row := s.pool.QueryRow(ctx, query, args...)
	var count int
	return count, row.Scan(&count)
}

func (s *Store) CreateVideo(ctx context.Context, v Video) (int64, error) {
	utils.Debug("db create video", "title_len", len(v.Title))
	row := s.pool.QueryRow(ctx, `
		INSERT INTO videos (title, status, kind, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id
	`, v.Title, v.Status, v.Kind, v.Meta)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) UpdateVideoMetaStatus(ctx context.Context, id int64, status string, meta map[string]any) error {
	utils.Debug("db update video meta+status", "id", id, "status", status)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE videos
		SET status = $1,
			meta = $2,
			updated_at = NOW()
		WHERE id = $3
	`, status, metaJSON, id)
	return err
}

func (s *Store) UpdateVideoMeta(ctx context.Context, id int64, meta map[string]any) error {
	utils.Debug("db update video meta", "id", id)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE videos
		SET meta = $1,
			updated_at = NOW()
		WHERE id = $2
	`, metaJSON, id)
	return err
}

func (s *Store) UpdateVideoStatus(ctx context.Context, id int64, status string) error {
	utils.Debug("db update video status", "id", id, "status", status)
	_, err := s.pool.Exec(ctx, `
		UPDATE videos
		SET status = $1,
			updated_at = NOW()
		WHERE id = $2
	`, status, id)
	return err
}

func (s *Store) QueryVideos(ctx context.Context, where string, args ...any) ([]Video, error) {
	query := `
		SELECT id, title, status, kind, meta, created_at, updated_at
		FROM videos
		` + where + `
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(
			&v.ID,
			&v.Title,
			&v.Status,
			&v.Kind,
			&v.Meta,
			&v.CreatedAt,
			&v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// Status flag conditions over the meta->'status' JSON object. These power
// stage eligibility queries for the jobs.

func StatusTrueCondition(flags []string) string {
	conds := make([]string, 0, len(flags))
	for _, flag := range flags {
		conds = append(conds, fmt.Sprintf("meta->'status'->>'%s' = 'true'", flag))
	}
	return strings.Join(conds, " AND ")
}

func StatusNotTrueCondition(flags []string) string {
	conds := make([]string, 0, len(flags))
	for _, flag := range flags {
		conds = append(conds, fmt.Sprintf("(meta->'status'->>'%s' IS NULL OR meta->'status'->>'%s' <> 'true')", flag, flag))
	}
	return strings.Join(conds, " AND ")
}

func StatusFalseCondition(flags []string) string {
	conds := make([]string, 0, len(flags))
	for _, flag := range flags {
		conds = append(conds, fmt.Sprintf("meta->'status'->>'%s' = 'false'", flag))
	}
	return strings.Join(conds, " AND ")
}

func MetaKeyMissingCondition(keys []string) string {
	conds := make([]string, 0, len(keys))
	for _, key := range keys {
		conds = append(conds, fmt.Sprintf("NOT (meta ? '%s')", key))
	}
	return strings.Join(conds, " AND ")
}
