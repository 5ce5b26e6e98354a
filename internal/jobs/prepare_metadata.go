package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/utils"
)

type PrepareMetadataJob struct {
	BaseJob
	MaxWaiting int
}

func NewPrepareMetadataJob() PrepareMetadataJob {
	return PrepareMetadataJob{
		BaseJob: BaseJob{
			QueueInput:  "video_ready",
			QueueOutput: "schedule_video",
		},
		MaxWaiting: 100,
	}
}

func (j PrepareMetadataJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if opts.Queue {
		return j.RunQueue(ctx, jctx, opts, func(ctx context.Context, videoID int64, hostname string) error {
			return j.processVideo(ctx, jctx, videoID)
		})
	}

	videoID := opts.VideoID
	if videoID == 0 {
		count, err := j.countWaiting(ctx, jctx)
		if err != nil {
			return err
		}
		utils.Logf("PrepareMetadata: waiting=%d max=%d", count, j.MaxWaiting)
		if count >= j.MaxWaiting {
			utils.Logf("PrepareMetadata: too many waiting, sleeping 60s")
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

func (j PrepareMetadataJob) countWaiting(ctx context.Context, jctx JobContext) (int, error) {
	where := "WHERE kind = 'video'"
	trueFlags := db.StatusTrueCondition([]string{"metadata_ready"})
	notTrue := db.StatusNotTrueCondition([]string{"scheduled"})
	if trueFlags != "" {
		where += " AND " + trueFlags
	}
	if notTrue != "" {
		where += " AND " + notTrue
	}
	return jctx.Store.CountVideos(ctx, where)
}

func (j PrepareMetadataJob) selectNext(ctx context.Context, jctx JobContext) (db.Video, error) {
	where := "WHERE kind = 'video'"
	notTrue := db.StatusNotTrueCondition([]string{"metadata_ready"})
	if notTrue != "" {
		where += " AND " + notTrue
	}
	video, err := jctx.Store.FindFirstVideo(ctx, where)
	if err != nil {
		return db.Video{}, err
	}
	if video.ID == 0 {
		return db.Video{}, errors.New("no video to process")
	}
	return video, nil
}

func (j PrepareMetadataJob) processVideo(ctx context.Context, jctx JobContext, videoID int64) error {
	utils.Logf("PrepareMetadata: process video_id=%d", videoID)
	video, err := jctx.Store.GetVideoByID(ctx, videoID)
	if err != nil {
		return err
	}
	meta, err := utils.DecodeMeta(video.Meta)
	if err != nil {
		return err
	}

	affiliates, err := jctx.Store.ListAffiliates(ctx, true)
	if err != nil {
		return err
	}
	defaults, err := jctx.Store.GetSetting(ctx, "default_tags")
	if err != nil {
		return err
	}
	var defaultTags []string
	if defaults != "" {
		defaultTags = strings.Split(defaults, ",")
	}

	metadata := BuildMetadata(video.ID, video.Title, meta, affiliates, defaultTags)

	meta["metadata"] = map[string]any{
		"title":       metadata.Title,
		"description": metadata.Description,
		"tags":        metadata.Tags,
	}
	utils.SetStatus(meta, "metadata_ready", true)

	if err := jctx.Store.UpdateVideoMetaStatus(ctx, video.ID, "metadata_ready", meta); err != nil {
		return err
	}
	return j.publishNext(jctx, video.ID)
}
