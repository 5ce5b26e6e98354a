package db

import (
	"context"
	"time"

	"content-empire/manager-go/internal/utils"
)

type VideoMetric struct {
	VideoID      int64
	ObservedAt   time.Time
	Views        int64
	WatchMinutes int64
	Impressions  int64
	Clicks       int64
}

// ImportMetrics inserts a batch of observations and records the file's
// dedupe key in one transaction, so a failed import leaves no partial rows
// behind to skew the audience histogram on a retry.
func (s *Store) ImportMetrics(ctx context.Context, metrics []VideoMetric, dedupeKey, importedAt string) error {
	utils.Debug("db import metrics", "count", len(metrics), "dedupe_key", dedupeKey)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, m := range metrics {
		_, err := tx.Exec(ctx, `
			INSERT INTO video_metrics (video_id, observed_at, views, watch_minutes, impressions, clicks)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.VideoID, m.ObservedAt, m.Views, m.WatchMinutes, m.Impressions, m.Clicks)
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

// AudienceSlot is the mean observed views for one weekday/hour cell.
// Weekday follows time.Weekday (Sunday = 0).
type AudienceSlot struct {
	Weekday   int
	Hour      int
	MeanViews float64
}

// AudienceHistogram aggregates metric observations into weekday/hour cells
// for the publish-slot scorer.
func (s *Store) AudienceHistogram(ctx context.Context) ([]AudienceSlot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT EXTRACT(DOW FROM observed_at)::int,
			EXTRACT(HOUR FROM observed_at)::int,
			AVG(views)::float8
		FROM video_metrics
		GROUP BY 1, 2
		ORDER BY 1, 2
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []AudienceSlot
	for rows.Next() {
		var slot AudienceSlot
		if err := rows.Scan(&slot.Weekday, &slot.Hour, &slot.MeanViews); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (s *Store) CountMetrics(ctx context.Context, videoID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM video_metrics WHERE video_id = $1
	`, videoID).Scan(&count)
	return count, err
}
