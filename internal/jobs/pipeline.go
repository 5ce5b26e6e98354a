package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"content-empire/manager-go/internal/workflow"
)

// BuildPipeline returns the named workflow graph bound to one video. Steps
// call the same processing code the standalone jobs use, so a workflow run
// and a queue worker leave identical state behind.
func BuildPipeline(name string, jctx JobContext, videoID int64) (*workflow.Graph, error) {
	switch name {
	case "video-pipeline":
		return videoPipeline(jctx, videoID)
	case "comments":
		return commentsPipeline(jctx, videoID)
	default:
		return nil, fmt.Errorf("unknown workflow %q (known: %s)", name, knownPipelines())
	}
}

// PipelineNames lists the workflows BuildPipeline accepts.
func PipelineNames() []string {
	names := []string{"video-pipeline", "comments"}
	sort.Strings(names)
	return names
}

func knownPipelines() string {
	out := ""
	for i, name := range PipelineNames() {
		if i > 0 {
			out += ", "
		}
		out += name
	}
	return out
}

// videoPipeline takes a video from raw meta to published: listing first,
// then a slot, then the upload once the slot is due.
func videoPipeline(jctx JobContext, videoID int64) (*workflow.Graph, error) {
	prepare := NewPrepareMetadataJob()
	scheduleJob := NewScheduleVideoJob()
	publish := NewPublishVideoJob()

	g := workflow.NewGraph()
	if err := g.AddStep("prepare_metadata", func(ctx context.Context) error {
		return prepare.processVideo(ctx, jctx, videoID)
	}); err != nil {
		return nil, err
	}
	if err := g.AddStep("schedule", func(ctx context.Context) error {
		return scheduleJob.processVideo(ctx, jctx, videoID)
	}, "prepare_metadata"); err != nil {
		return nil, err
	}
	if err := g.AddStep("publish", func(ctx context.Context) error {
		sched, err := jctx.Store.GetPendingScheduleForVideo(ctx, videoID)
		if err != nil {
			return err
		}
		if sched.ID == 0 {
			return fmt.Errorf("video %d has no pending schedule", videoID)
		}
		if sched.PublishAt.After(time.Now()) {
			// Resuming the run after the slot arrives picks up here.
			return fmt.Errorf("video %d not due until %s: %w", videoID, sched.PublishAt.Format(time.RFC3339), ErrNotDue)
		}
		return publish.processSchedule(ctx, jctx, sched, false)
	}, "schedule"); err != nil {
		return nil, err
	}
	return g, nil
}

// commentsPipeline answers the backlog for one video.
func commentsPipeline(jctx JobContext, videoID int64) (*workflow.Graph, error) {
	respond := NewRespondCommentsJob()

	g := workflow.NewGraph()
	if err := g.AddStep("respond_comments", func(ctx context.Context) error {
		return respond.processVideo(ctx, jctx, videoID)
	}); err != nil {
		return nil, err
	}
	return g, nil
}
