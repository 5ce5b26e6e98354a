package db

import (
	"context"
	"errors"
	"time"

	"content-empire/manager-go/internal/utils"
	"github.com/jackc/pgx/v5"
)

const (
	SchedulePending   = "pending"
	SchedulePublished = "published"
	ScheduleCanceled  = "canceled"
)

type ScheduledVideo struct {
	ID        int64
	VideoID   int64
	PublishAt time.Time
	Score     float64
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Store) InsertSchedule(ctx context.Context, videoID int64, publishAt time.Time, score float64) (int64, error) {
	utils.Debug("db insert schedule", "video_id", videoID, "publish_at", publishAt)
	row := s.pool.QueryRow(ctx, `
		INSERT INTO scheduled_videos (video_id, publish_at, score, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', NOW(), NOW())
		RETURNING id
	`, videoID, publishAt, score)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) ListPendingSchedules(ctx context.Context) ([]ScheduledVideo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, video_id, publish_at, score, status, created_at, updated_at
		FROM scheduled_videos
		WHERE status = 'pending'
		ORDER BY publish_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// FindDueSchedule returns the earliest pending schedule whose publish time
// has passed, or a zero-value row when nothing is due.
func (s *Store) FindDueSchedule(ctx context.Context, now time.Time) (ScheduledVideo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, video_id, publish_at, score, status, created_at, updated_at
		FROM scheduled_videos
		WHERE status = 'pending' AND publish_at <= $1
		ORDER BY publish_at
		LIMIT 1
	`, now)
	var sv ScheduledVideo
	err := row.Scan(&sv.ID, &sv.VideoID, &sv.PublishAt, &sv.Score, &sv.Status, &sv.CreatedAt, &sv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScheduledVideo{}, nil
		}
		return ScheduledVideo{}, err
	}
	return sv, nil
}

func (s *Store) GetSchedule(ctx context.Context, id int64) (ScheduledVideo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, video_id, publish_at, score, status, created_at, updated_at
		FROM scheduled_videos
		WHERE id = $1
	`, id)
	var sv ScheduledVideo
	err := row.Scan(&sv.ID, &sv.VideoID, &sv.PublishAt, &sv.Score, &sv.Status, &sv.CreatedAt, &sv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScheduledVideo{}, nil
		}
		return ScheduledVideo{}, err
	}
	return sv, nil
}

func (s *Store) GetPendingScheduleForVideo(ctx context.Context, videoID int64) (ScheduledVideo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, video_id, publish_at, score, status, created_at, updated_at
		FROM scheduled_videos
		WHERE status = 'pending' AND video_id = $1
		ORDER BY publish_at
		LIMIT 1
	`, videoID)
	var sv ScheduledVideo
	err := row.Scan(&sv.ID, &sv.VideoID, &sv.PublishAt, &sv.Score, &sv.Status, &sv.CreatedAt, &sv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScheduledVideo{}, nil
		}
		return ScheduledVideo{}, err
	}
	return sv, nil
}

func (s *Store) CountPendingSchedules(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM scheduled_videos WHERE status = 'pending'
	`).Scan(&count)
	return count, err
}

func (s *Store) MarkSchedulePublished(ctx context.Context, id int64) error {
	utils.Debug("db mark schedule published", "id", id)
	return s.setScheduleStatus(ctx, id, SchedulePublished)
}

func (s *Store) CancelSchedule(ctx context.Context, id int64) error {
	utils.Debug("db cancel schedule", "id", id)
	return s.setScheduleStatus(ctx, id, ScheduleCanceled)
}

func (s *Store) setScheduleStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE scheduled_videos
		SET status = $1,
			updated_at = NOW()
		WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("schedule not found")
	}
	return nil
}

// LastPublishedAt returns the publish time of the most recent published
// schedule, or the zero time when nothing has been published yet.
func (s *Store) LastPublishedAt(ctx context.Context) (time.Time, error) {
	var last time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(publish_at), 'epoch'::timestamptz)
		FROM scheduled_videos
		WHERE status = 'published'
	`).Scan(&last)
	if err != nil {
		return time.Time{}, err
	}
	if last.Unix() <= 0 {
		return time.Time{}, nil
	}
	return last, nil
}

func scanSchedules(rows pgx.Rows) ([]ScheduledVideo, error) {
	var schedules []ScheduledVideo
	for rows.Next() {
		var sv ScheduledVideo
		if err := rows.Scan(&sv.ID, &sv.VideoID, &sv.PublishAt, &sv.Score, &sv.Status, &sv.CreatedAt, &sv.UpdatedAt); err != nil {
			return nil, err
		}
		schedules = append(schedules, sv)
	}
	return schedules, rows.Err()
}
