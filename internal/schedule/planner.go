package schedule

import (
	"context"
	"fmt"
	"time"

	"content-empire/manager-go/internal/config"
	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/utils"
)

// Planner loads scoring inputs from the store, picks a slot and persists
// the schedule row plus the video's scheduled flag.
type Planner struct {
	Store  *db.Store
	Config config.ScheduleConfig
}

func (p *Planner) Plan(ctx context.Context, videoID int64) (db.ScheduledVideo, error) {
	video, err := p.Store.GetVideoByID(ctx, videoID)
	if err != nil {
		return db.ScheduledVideo{}, err
	}

	existing, err := p.Store.GetPendingScheduleForVideo(ctx, videoID)
	if err != nil {
		return db.ScheduledVideo{}, err
	}
	if existing.ID != 0 {
		return db.ScheduledVideo{}, fmt.Errorf("video %d already has pending schedule %d", videoID, existing.ID)
	}

	inputs, err := p.loadInputs(ctx)
	if err != nil {
		return db.ScheduledVideo{}, err
	}

	pick, err := PickSlot(inputs, p.Config)
	if err != nil {
		return db.ScheduledVideo{}, err
	}
	utils.Info("schedule pick", "video_id", videoID, "publish_at", pick.Time, "score", pick.Score)

	scheduleID, err := p.Store.InsertSchedule(ctx, videoID, pick.Time, pick.Score)
	if err != nil {
		return db.ScheduledVideo{}, err
	}

	meta, err := utils.DecodeMeta(video.Meta)
	if err != nil {
		return db.ScheduledVideo{}, err
	}
	meta["schedule"] = map[string]any{
		"id":         scheduleID,
		"publish_at": pick.Time.Format(time.RFC3339),
		"score":      pick.Score,
	}
	utils.SetStatus(meta, "scheduled", true)
	if err := p.Store.UpdateVideoMetaStatus(ctx, videoID, "scheduled", meta); err != nil {
		return db.ScheduledVideo{}, err
	}

	return db.ScheduledVideo{
		ID:        scheduleID,
		VideoID:   videoID,
		PublishAt: pick.Time,
		Score:     pick.Score,
		Status:    db.SchedulePending,
	}, nil
}

func (p *Planner) loadInputs(ctx context.Context) (Inputs, error) {
	histogram, err := p.Store.AudienceHistogram(ctx)
	if err != nil {
		return Inputs{}, err
	}
	audience := make(map[HourKey]float64, len(histogram))
	for _, slot := range histogram {
		audience[HourKey{slot.Weekday, slot.Hour}] = slot.MeanViews
	}

	pendingRows, err := p.Store.ListPendingSchedules(ctx)
	if err != nil {
		return Inputs{}, err
	}
	pending := make([]time.Time, 0, len(pendingRows))
	for _, row := range pendingRows {
		pending = append(pending, row.PublishAt)
	}

	last, err := p.Store.LastPublishedAt(ctx)
	if err != nil {
		return Inputs{}, err
	}

	backlog, err := p.backlog(ctx)
	if err != nil {
		return Inputs{}, err
	}

	return Inputs{
		Now:           time.Now(),
		Audience:      audience,
		Pending:       pending,
		LastPublished: last,
		Backlog:       backlog,
	}, nil
}

// backlog counts videos that finished metadata prep but have no slot yet.
func (p *Planner) backlog(ctx context.Context) (int, error) {
	where := "WHERE " + db.StatusTrueCondition([]string{"metadata_ready"})
	if notTrue := db.StatusNotTrueCondition([]string{"scheduled"}); notTrue != "" {
		where += " AND " + notTrue
	}
	return p.Store.CountVideos(ctx, where)
}
