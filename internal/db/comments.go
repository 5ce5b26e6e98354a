package db

import (
	"context"
	"time"

	"content-empire/manager-go/internal/utils"
)

type Comment struct {
	ID        int64
	VideoID   int64
	Author    string
	Body      string
	PostedAt  time.Time
	Responded bool
}

type Response struct {
	ID        int64
	CommentID int64
	Body      string
	Posted    bool
	CreatedAt time.Time
}

// ImportComments inserts a batch of comments and records the file's dedupe
// key in one transaction. Same all-or-nothing contract as ImportMetrics.
func (s *Store) ImportComments(ctx context.Context, comments []Comment, dedupeKey, importedAt string) error {
	utils.Debug("db import comments", "count", len(comments), "dedupe_key", dedupeKey)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range comments {
		_, err := tx.Exec(ctx, `
			INSERT INTO comments (video_id, author, body, posted_at, responded)
			VALUES ($1, $2, $3, $4, false)
		`, c.VideoID, c.Author, c.Body, c.PostedAt)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`, dedupeKey, importedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListUnrespondedComments(ctx context.Context, videoID int64) ([]Comment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, video_id, author, body, posted_at, responded
		FROM comments
		WHERE video_id = $1 AND responded = false
		ORDER BY posted_at
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.VideoID, &c.Author, &c.Body, &c.PostedAt, &c.Responded); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) CountUnrespondedComments(ctx context.Context, videoID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM comments WHERE video_id = $1 AND responded = false
	`, videoID).Scan(&count)
	return count, err
}

func (s *Store) MarkCommentResponded(ctx context.Context, id int64) error {
	utils.Debug("db mark comment responded", "id", id)
	_, err := s.pool.Exec(ctx, `
		UPDATE comments SET responded = true WHERE id = $1
	`, id)
	return err
}

func (s *Store) InsertResponse(ctx context.Context, commentID int64, body string) (int64, error) {
	utils.Debug("db insert response", "comment_id", commentID)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO responses (comment_id, body, posted, created_at)
		VALUES ($1, $2, false, NOW())
		RETURNING id
	`, commentID, body)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListResponses(ctx context.Context, commentID int64) ([]Response, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, comment_id, body, posted, created_at
		FROM responses
		WHERE comment_id = $1
		ORDER BY id
	`, commentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		var r Response
		if err := rows.Scan(&r.ID, &r.CommentID, &r.Body, &r.Posted, &r.CreatedAt); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
