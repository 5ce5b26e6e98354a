package jobs

import (
	"context"
	"errors"
	"strings"

	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/utils"
)

const defaultResponseTemplate = "Thanks for watching, {author}!"

type RespondCommentsJob struct {
	BaseJob
}

func NewRespondCommentsJob() RespondCommentsJob {
	return RespondCommentsJob{
		BaseJob: BaseJob{
			QueueInput: "respond_comments",
			// Drafting responses only touches the shared database.
			IgnoreHostCheck: true,
		},
	}
}

func (j RespondCommentsJob) Run(ctx context.Context, jctx JobContext, opts JobOptions) error {
	if opts.Queue {
		return j.RunQueue(ctx, jctx, opts, func(ctx context.Context, videoID int64, hostname string) error {
			return j.processVideo(ctx, jctx, videoID)
		})
	}

	videoID := opts.VideoID
	if videoID == 0 {
		video, err := j.selectNext(ctx, jctx)
		if err != nil {
			return err
		}
		videoID = video.ID
	}

	return j.processVideo(ctx, jctx, videoID)
}

func (j RespondCommentsJob) selectNext(ctx context.Context, jctx JobContext) (db.Video, error) {
	where := "WHERE id IN (SELECT video_id FROM comments WHERE responded = false)"
	video, err := jctx.Store.FindFirstVideo(ctx, where)
	if err != nil {
		return db.Video{}, err
	}
	if video.ID == 0 {
		return db.Video{}, errors.New("no video with unanswered comments")
	}
	return video, nil
}

func (j RespondCommentsJob) processVideo(ctx context.Context, jctx JobContext, videoID int64) error {
	utils.Logf("RespondComments: process video_id=%d", videoID)

	comments, err := jctx.Store.ListUnrespondedComments(ctx, videoID)
	if err != nil {
		return err
	}
	if len(comments) == 0 {
		utils.Logf("RespondComments: nothing to answer for video_id=%d", videoID)
		return nil
	}

	template, err := jctx.Store.GetSetting(ctx, "response_template")
	if err != nil {
		return err
	}
	if template == "" {
		template = defaultResponseTemplate
	}

	for _, comment := range comments {
		body := DraftResponse(template, comment)
		if _, err := jctx.Store.InsertResponse(ctx, comment.ID, body); err != nil {
			return err
		}
		if err := jctx.Store.MarkCommentResponded(ctx, comment.ID); err != nil {
			return err
		}
		utils.Debug("response drafted", "comment_id", comment.ID, "author", comment.Author)
	}
	utils.Info("comments answered", "video_id", videoID, "count", len(comments))
	return nil
}

// DraftResponse fills the reply template for one comment. Supported
// placeholders are {author} and {comment}.
func DraftResponse(template string, comment db.Comment) string {
	body := strings.ReplaceAll(template, "{author}", comment.Author)
	body = strings.ReplaceAll(body, "{comment}", comment.Body)
	return strings.TrimSpace(body)
}
