package jobs

import (
	"context"
	"errors"
	"time"

	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/schedule"
	"content-empire/manager-go/internal/utils"
)

type ScheduleVideoJob struct {
	BaseJob
	MaxWaiting int
}

func NewScheduleVideoJob() ScheduleVideoJob {
	return ScheduleVideoJob{
		BaseJob: BaseJob{
			QueueInput:  "schedule_video",
			QueueOutput: "publish_video",
			// Slot planning reads only the shared database, any host may run it.
			IgnoreHostCheck: true,
		},
		MaxWaiting: 50,
	}
}

func (j ScheduleVideoJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if opts.Queue {
		return j.RunQueue(ctx, jctx, opts, func(ctx context.Context, videoID int64, hostname string) error {
			return j.processVideo(ctx, jctx, videoID)
		})
	}

	videoID := opts.VideoID
	if videoID == 0 {
		count, err := jctx.Store.CountPendingSchedules(ctx)
		if err != nil {
			return err
		}
		utils.Logf("ScheduleVideo: pending=%d max=%d", count, j.MaxWaiting)
		if count >= j.MaxWaiting {
			utils.Logf("ScheduleVideo: too many pending slots, sleeping 60s")
			time.Sleep(60 * time.Second)
			return nil
		}

		video, err := j.selectNext(ctx, jctx)
		if err != nil {
			return err
		}
		videoID = video.ID
	}

	return j.processVideo(ctx, jctx, videoID)
}

func (j ScheduleVideoJob) selectNext(ctx context.Context, jctx JobContext) (db.Video, error) {
	where := "WHERE kind = 'video'"
	trueFlags := db.StatusTrueCondition([]string{"metadata_ready"})
	notTrue := db.StatusNotTrueCondition([]string{"scheduled"})
	if trueFlags != "" {
		where += " AND " + trueFlags
	}
	if notTrue != "" {
		where += " AND " + notTrue
	}
	video, err := jctx.Store.FindFirstVideo(ctx, where)
	if err != nil {
		return db.Video{}, err
	}
	if video.ID == 0 {
		return db.Video{}, errors.New("no video to schedule")
	}
	return video, nil
}

func (j ScheduleVideoJob) processVideo(ctx context.Context, jctx JobContext, videoID int64) error {
	utils.Logf("ScheduleVideo: process video_id=%d", videoID)

	planner := schedule.Planner{Store: jctx.Store, Config: jctx.Config.Schedule}
	planned, err := planner.Plan(ctx, videoID)
	if err != nil {
		return err
	}
	utils.Info("video scheduled", "video_id", videoID, "schedule_id", planned.ID, "publish_at", planned.PublishAt)

	return j.publishNext(jctx, videoID)
}
