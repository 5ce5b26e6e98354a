package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/utils"
)

type PublishVideoJob struct {
	BaseJob
}

func NewPublishVideoJob() PublishVideoJob {
	return PublishVideoJob{
		BaseJob: BaseJob{
			QueueInput:  "publish_video",
			QueueOutput: "video_published",
		},
	}
}

func (j PublishVideoJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if opts.Queue {
		return j.RunQueue(ctx, jctx, opts, func(ctx context.Context, videoID int64, hostname string) error {
			sched, err := jctx.Store.GetPendingScheduleForVideo(ctx, videoID)
			if err != nil {
				return err
			}
			if sched.ID == 0 {
				utils.Warn("publish: no pending schedule", "video_id", videoID)
				return nil
			}
			if sched.PublishAt.After(time.Now()) {
				return fmt.Errorf("video %d not due until %s: %w", videoID, sched.PublishAt.Format(time.RFC3339), ErrNotDue)
			}
			return j.processSchedule(ctx, jctx, sched, opts.Info)
		})
	}

	if opts.VideoID != 0 {
		sched, err := jctx.Store.GetPendingScheduleForVideo(ctx, opts.VideoID)
		if err != nil {
			return err
		}
		if sched.ID == 0 {
			return fmt.Errorf("video %d has no pending schedule", opts.VideoID)
		}
		return j.processSchedule(ctx, jctx, sched, opts.Info)
	}

	sched, err := jctx.Store.FindDueSchedule(ctx, time.Now())
	if err != nil {
		return err
	}
	if sched.ID == 0 {
		return errors.New("no schedule due")
	}
	return j.processSchedule(ctx, jctx, sched, opts.Info)
}

func (j PublishVideoJob) processSchedule(ctx context.Context, jctx JobContext, sched db.ScheduledVideo, info bool) error {
	utils.Logf("PublishVideo: process video_id=%d schedule_id=%d", sched.VideoID, sched.ID)
	video, err := jctx.Store.GetVideoByID(ctx, sched.VideoID)
	if err != nil {
		return err
	}
	meta, err := utils.DecodeMeta(video.Meta)
	if err != nil {
		return err
	}

	listing, ok := utils.GetMap(meta, "metadata")
	if !ok {
		return errors.New("metadata missing, run job:PrepareMetadata first")
	}
	title, _ := utils.GetString(listing, "title")
	if title == "" {
		return errors.New("metadata missing, run job:PrepareMetadata first")
	}
	description, _ := utils.GetString(listing, "description")
	tags, _ := utils.GetStringSlice(listing, "tags")

	assetFilename, _ := utils.GetString(meta, "asset", "filename")
	if assetFilename == "" {
		return errors.New("asset filename missing")
	}
	filename := filepath.Join(jctx.Config.BaseOutputFolder, "videos", assetFilename)
	privacyStatus := "public"

	if info {
		fmt.Printf("Title: %s\n", title)
		fmt.Printf("Description:\n%s\n", description)
		fmt.Printf("Tags: %s\nPrivacy status: %s\nFile: %s\n", strings.Join(tags, ","), privacyStatus, filename)

		input, err := utils.Prompt("Enter video ID or URL")
		if err != nil {
			return err
		}
		videoID := extractYouTubeID(input)
		if videoID == "" {
			return errors.New("invalid YouTube video ID or URL")
		}
		return j.finishPublish(ctx, jctx, sched, meta, videoID)
	}

	if jctx.Config.PublishCommand == "" {
		return errors.New("paths.publish_command is not configured")
	}
	if !utils.FileExists(filename) {
		return fmt.Errorf("asset file %s not found", filename)
	}

	command := fmt.Sprintf(
		"%s --file=%s --title=%s --description=%s --tags=%s --privacyStatus=%s",
		jctx.Config.PublishCommand,
		utils.ShellEscape(filename),
		utils.ShellEscape(title),
		utils.ShellEscape(description),
		utils.ShellEscape(strings.Join(tags, ",")),
		utils.ShellEscape(privacyStatus),
	)

	output, err := utils.RunCommand(command)
	if err != nil {
		return err
	}

	pattern := regexp.MustCompile("Video id '([^']+)' was successfully uploaded")
	matches := pattern.FindStringSubmatch(output)
	if len(matches) < 2 {
		return errors.New("video ID not found in publish output")
	}

	return j.finishPublish(ctx, jctx, sched, meta, matches[1])
}

func (j PublishVideoJob) finishPublish(ctx context.Context, jctx JobContext, sched db.ScheduledVideo, meta map[string]any, youtubeID string) error {
	meta["video_id.v1"] = youtubeID
	utils.SetStatus(meta, "published", true)

	if err := jctx.Store.UpdateVideoMetaStatus(ctx, sched.VideoID, "published", meta); err != nil {
		return err
	}
	if err := jctx.Store.MarkSchedulePublished(ctx, sched.ID); err != nil {
		return err
	}
	utils.Info("video published", "video_id", sched.VideoID, "youtube_id", youtubeID)
	return j.publishNext(jctx, sched.VideoID)
}

func extractYouTubeID(input string) string {
	input = strings.TrimSpace(input)
	if len(input) == 11 && regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`).MatchString(input) {
		return input
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return ""
	}

	switch parsed.Host {
	case "youtu.be":
		return strings.TrimPrefix(parsed.Path, "/")
	case "www.youtube.com", "youtube.com":
		if strings.HasPrefix(parsed.Path, "/watch") {
			return parsed.Query().Get("v")
		}
		if strings.HasPrefix(parsed.Path, "/embed/") {
			return strings.TrimPrefix(parsed.Path, "/embed/")
		}
		if strings.HasPrefix(parsed.Path, "/shorts/") {
			return strings.TrimPrefix(parsed.Path, "/shorts/")
		}
	}

	return ""
}
