package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/jobs"
	"content-empire/manager-go/internal/retry"
	"content-empire/manager-go/internal/schedule"
	"content-empire/manager-go/internal/utils"
	"content-empire/manager-go/internal/workflow"
)

func runWorkflowRun(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("workflow:Run", flag.ContinueOnError)
	runID := fs.String("run-id", "", "Resume an existing run instead of starting a new one")
	workers := fs.Int("workers", 2, "Number of steps to run concurrently")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: workflow:Run <name> <video_id> (known workflows: %s)", strings.Join(jobs.PipelineNames(), ", "))
	}
	name := rest[0]
	videoID, err := strconv.ParseInt(rest[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid video_id: %s", rest[1])
	}

	g, err := jobs.BuildPipeline(name, jctx, videoID)
	if err != nil {
		return err
	}

	id := *runID
	if id == "" {
		id = uuid.NewString()
	}
	fmt.Printf("Run ID: %s\n", id)

	exec := workflow.Executor{
		Workers:  *workers,
		Retry:    retry.DefaultConfig(),
		Recorder: jctx.Store,
	}
	if err := exec.Run(ctx, id, name, g); err != nil {
		return fmt.Errorf("workflow %s run %s: %w", name, id, err)
	}
	fmt.Printf("Workflow %s finished (%d steps)\n", name, g.Len())
	return nil
}

func runWorkflowStatus(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("workflow:Status", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return errors.New("usage: workflow:Status <run_id>")
	}
	runID := fs.Args()[0]

	run, err := jctx.Store.GetWorkflowRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.ID == "" {
		return fmt.Errorf("run %s not found", runID)
	}

	fmt.Printf("Run %s  workflow=%s  status=%s  started=%s", run.ID, run.Name, run.Status, run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Printf("  finished=%s", run.FinishedAt.Format(time.RFC3339))
	}
	fmt.Println()

	steps, err := jctx.Store.ListWorkflowSteps(ctx, runID)
	if err != nil {
		return err
	}
	for _, st := range steps {
		line := fmt.Sprintf("  %-20s %-8s attempts=%d", st.Step, st.Status, st.Attempts)
		if st.Error != nil {
			line += "  error=" + *st.Error
		}
		fmt.Println(line)
	}
	return nil
}

func runSchedulePlan(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("schedule:Plan", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	videoID, err := parseVideoID(fs.Args())
	if err != nil {
		return err
	}
	if videoID == 0 {
		return errors.New("usage: schedule:Plan <video_id>")
	}

	planner := schedule.Planner{Store: jctx.Store, Config: jctx.Config.Schedule}
	planned, err := planner.Plan(ctx, videoID)
	if err != nil {
		return err
	}
	fmt.Printf("Scheduled video %d: slot=%s score=%.3f (schedule %d)\n",
		videoID, planned.PublishAt.Format(time.RFC3339), planned.Score, planned.ID)
	return nil
}

func runScheduleList(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("schedule:List", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	schedules, err := jctx.Store.ListPendingSchedules(ctx)
	if err != nil {
		return err
	}
	if len(schedules) == 0 {
		fmt.Println("No pending schedules")
		return nil
	}
	for _, sv := range schedules {
		fmt.Printf("%6d  video=%d  publish_at=%s  score=%.3f\n",
			sv.ID, sv.VideoID, sv.PublishAt.Format(time.RFC3339), sv.Score)
	}
	return nil
}

func runScheduleCancel(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("schedule:Cancel", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return errors.New("usage: schedule:Cancel <schedule_id>")
	}
	id, err := strconv.ParseInt(fs.Args()[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid schedule_id: %s", fs.Args()[0])
	}

	sched, err := jctx.Store.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if sched.ID == 0 {
		return fmt.Errorf("schedule %d not found", id)
	}
	if sched.Status != db.SchedulePending {
		return fmt.Errorf("schedule %d is %s, only pending schedules can be canceled", id, sched.Status)
	}

	if err := jctx.Store.CancelSchedule(ctx, id); err != nil {
		return err
	}

	// Clear the scheduled flag so the video becomes eligible again.
	video, err := jctx.Store.GetVideoByID(ctx, sched.VideoID)
	if err != nil {
		return err
	}
	meta, err := utils.DecodeMeta(video.Meta)
	if err != nil {
		return err
	}
	utils.SetStatus(meta, "scheduled", false)
	delete(meta, "schedule")
	if err := jctx.Store.UpdateVideoMeta(ctx, sched.VideoID, meta); err != nil {
		return err
	}
	if err := jctx.Store.UpdateVideoStatus(ctx, sched.VideoID, "metadata_ready"); err != nil {
		return err
	}

	fmt.Printf("Canceled schedule %d (video %d)\n", id, sched.VideoID)
	return nil
}

type metricRecord struct {
	VideoID      int64  `json:"video_id"`
	ObservedAt   string `json:"observed_at"`
	Views        int64  `json:"views"`
	WatchMinutes int64  `json:"watch_minutes"`
	Impressions  int64  `json:"impressions"`
	Clicks       int64  `json:"clicks"`
}

// parseMetricRecords validates the whole export file before anything is
// written: one bad record rejects the file.
func parseMetricRecords(data []byte) ([]db.VideoMetric, error) {
	var records []metricRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	metrics := make([]db.VideoMetric, 0, len(records))
	for i, rec := range records {
		if rec.VideoID == 0 {
			return nil, fmt.Errorf("record %d: missing video_id", i)
		}
		observedAt, err := time.Parse(time.RFC3339, rec.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid observed_at %q: %w", i, rec.ObservedAt, err)
		}
		metrics = append(metrics, db.VideoMetric{
			VideoID:      rec.VideoID,
			ObservedAt:   observedAt,
			Views:        rec.Views,
			WatchMinutes: rec.WatchMinutes,
			Impressions:  rec.Impressions,
			Clicks:       rec.Clicks,
		})
	}
	return metrics, nil
}

func runMetricsImport(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("metrics:Import", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return errors.New("usage: metrics:Import <file.json>")
	}
	path := fs.Args()[0]

	checksum, err := utils.SHA256File(path)
	if err != nil {
		return err
	}
	dedupeKey := "metrics_import." + checksum
	if applied, err := jctx.Store.GetSetting(ctx, dedupeKey); err != nil {
		return err
	} else if applied != "" {
		fmt.Printf("%s already imported at %s\n", filepath.Base(path), applied)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	metrics, err := parseMetricRecords(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	// Rows and the dedupe key land in one transaction, so a failed import
	// is fully retryable with the same file.
	importedAt := time.Now().UTC().Format(time.RFC3339)
	if err := jctx.Store.ImportMetrics(ctx, metrics, dedupeKey, importedAt); err != nil {
		return err
	}

	byVideo := map[int64]int{}
	for _, m := range metrics {
		byVideo[m.VideoID]++
	}
	fmt.Printf("Imported %d metric record(s) for %d video(s)\n", len(metrics), len(byVideo))
	for videoID := range byVideo {
		total, err := jctx.Store.CountMetrics(ctx, videoID)
		if err != nil {
			return err
		}
		utils.Logf("metrics: video_id=%d imported=%d total=%d", videoID, byVideo[videoID], total)
	}
	return nil
}

type commentRecord struct {
	VideoID  int64  `json:"video_id"`
	Author   string `json:"author"`
	Body     string `json:"body"`
	PostedAt string `json:"posted_at"`
}

func parseCommentRecords(data []byte) ([]db.Comment, error) {
	var records []commentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	comments := make([]db.Comment, 0, len(records))
	for i, rec := range records {
		if rec.VideoID == 0 {
			return nil, fmt.Errorf("record %d: missing video_id", i)
		}
		postedAt, err := time.Parse(time.RFC3339, rec.PostedAt)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid posted_at %q: %w", i, rec.PostedAt, err)
		}
		comments = append(comments, db.Comment{
			VideoID:  rec.VideoID,
			Author:   rec.Author,
			Body:     rec.Body,
			PostedAt: postedAt,
		})
	}
	return comments, nil
}

func runCommentsImport(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("comments:Import", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return errors.New("usage: comments:Import <file.json>")
	}
	path := fs.Args()[0]

	checksum, err := utils.SHA256File(path)
	if err != nil {
		return err
	}
	dedupeKey := "comments_import." + checksum
	if applied, err := jctx.Store.GetSetting(ctx, dedupeKey); err != nil {
		return err
	} else if applied != "" {
		fmt.Printf("%s already imported at %s\n", filepath.Base(path), applied)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	comments, err := parseCommentRecords(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	importedAt := time.Now().UTC().Format(time.RFC3339)
	if err := jctx.Store.ImportComments(ctx, comments, dedupeKey, importedAt); err != nil {
		return err
	}

	fmt.Printf("Imported %d comment(s)\n", len(comments))
	return nil
}

func runCommentsList(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("comments:List", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	videoID, err := parseVideoID(fs.Args())
	if err != nil {
		return err
	}
	if videoID == 0 {
		return errors.New("usage: comments:List <video_id>")
	}

	count, err := jctx.Store.CountUnrespondedComments(ctx, videoID)
	if err != nil {
		return err
	}
	fmt.Printf("Video %d: %d unanswered comment(s)\n", videoID, count)

	comments, err := jctx.Store.ListUnrespondedComments(ctx, videoID)
	if err != nil {
		return err
	}
	for _, c := range comments {
		fmt.Printf("%6d  %s  %s: %s\n", c.ID, c.PostedAt.Format(time.RFC3339), c.Author, c.Body)
	}
	return nil
}

func runCommentsResponses(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("comments:Responses", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return errors.New("usage: comments:Responses <comment_id>")
	}
	commentID, err := strconv.ParseInt(fs.Args()[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid comment_id: %s", fs.Args()[0])
	}

	responses, err := jctx.Store.ListResponses(ctx, commentID)
	if err != nil {
		return err
	}
	if len(responses) == 0 {
		fmt.Printf("No responses drafted for comment %d\n", commentID)
		return nil
	}
	for _, r := range responses {
		posted := "draft"
		if r.Posted {
			posted = "posted"
		}
		fmt.Printf("%6d  %s  [%s] %s\n", r.ID, r.CreatedAt.Format(time.RFC3339), posted, r.Body)
	}
	return nil
}

func runAffiliateAdd(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("affiliate:Add", flag.ContinueOnError)
	name := fs.String("name", "", "Affiliate name (unique)")
	url := fs.String("url", "", "Affiliate link URL")
	tag := fs.String("tag", "", "Tracking tag appended to the URL")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if *name == "" || *url == "" {
		return errors.New("usage: affiliate:Add --name=... --url=... [--tag=...]")
	}

	existing, err := jctx.Store.GetAffiliate(ctx, *name)
	if err != nil {
		return err
	}

	affiliate := db.Affiliate{Name: *name, URL: *url, Tag: *tag, Enabled: true}
	if err := jctx.Store.UpsertAffiliate(ctx, affiliate); err != nil {
		return err
	}
	if existing.Name != "" {
		fmt.Printf("Updated affiliate %s\n", *name)
	} else {
		fmt.Printf("Added affiliate %s\n", *name)
	}
	return nil
}

func runAffiliateList(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("affiliate:List", flag.ContinueOnError)
	all := fs.Bool("all", false, "Include disabled affiliates")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	affiliates, err := jctx.Store.ListAffiliates(ctx, !*all)
	if err != nil {
		return err
	}
	if len(affiliates) == 0 {
		fmt.Println("No affiliates")
		return nil
	}
	for _, a := range affiliates {
		state := "enabled"
		if !a.Enabled {
			state = "disabled"
		}
		fmt.Printf("%-20s %-8s tag=%-10s %s\n", a.Name, state, a.Tag, a.URL)
	}
	return nil
}

func runAffiliateEnable(ctx context.Context, jctx jobs.JobContext, args []string, enabled bool) error {
	cmdName := "affiliate:Enable"
	if !enabled {
		cmdName = "affiliate:Disable"
	}
	fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return fmt.Errorf("usage: %s <name>", cmdName)
	}
	name := fs.Args()[0]
	if err := jctx.Store.SetAffiliateEnabled(ctx, name, enabled); err != nil {
		return err
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("Affiliate %s %s\n", name, state)
	return nil
}

func runSettingGet(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("setting:Get", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return errors.New("usage: setting:Get <key>")
	}
	value, err := jctx.Store.GetSetting(ctx, fs.Args()[0])
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func runSettingSet(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("setting:Set", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 2 {
		return errors.New("usage: setting:Set <key> <value>")
	}
	key := fs.Args()[0]
	value := strings.Join(fs.Args()[1:], " ")
	if err := jctx.Store.SetSetting(ctx, key, value); err != nil {
		return err
	}
	fmt.Printf("Set %s\n", key)
	return nil
}

func runSettingDelete(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("setting:Delete", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if len(fs.Args()) < 1 {
		return errors.New("usage: setting:Delete <key>")
	}
	if err := jctx.Store.DeleteSetting(ctx, fs.Args()[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", fs.Args()[0])
	return nil
}

func runSettingList(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("setting:List", flag.ContinueOnError)
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	settings, err := jctx.Store.ListSettings(ctx)
	if err != nil {
		return err
	}
	for _, st := range settings {
		fmt.Printf("%-40s %s\n", st.Key, st.Value)
	}
	return nil
}

func runVideoAdd(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("video:Add", flag.ContinueOnError)
	title := fs.String("title", "", "Video title")
	kind := fs.String("kind", "video", "Video kind")
	file := fs.String("file", "", "Rendered asset filename (relative to <base_output_folder>/videos)")
	text := fs.String("text", "", "Source text used for the description")
	topics := fs.String("topics", "", "Comma-separated topic list used for tags")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	if *title == "" {
		return errors.New("usage: video:Add --title=... [--kind=video] [--file=...] [--text=...] [--topics=a,b]")
	}

	meta := map[string]any{}
	utils.EnsureStatusMap(meta)
	if *text != "" {
		meta["original_text"] = *text
	}
	if *topics != "" {
		parts := strings.Split(*topics, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		meta["topics"] = list
	}
	if *file != "" {
		// The publish job resolves assets under <base_output_folder>/videos.
		if err := utils.EnsureDir(filepath.Join(jctx.Config.BaseOutputFolder, "videos")); err != nil {
			return err
		}
		meta["asset"] = map[string]any{"filename": filepath.Base(*file)}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	status := "new"
	video := db.Video{Title: *title, Status: &status, Kind: kind, Meta: metaJSON}
	id, err := jctx.Store.CreateVideo(ctx, video)
	if err != nil {
		return err
	}
	fmt.Printf("Created video %d\n", id)
	return nil
}

func runVideoList(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("video:List", flag.ContinueOnError)
	kind := fs.String("kind", "", "Filter by kind")
	flagTrue := fs.String("flag-true", "", "Comma-separated status flags that must be true")
	flagFalse := fs.String("flag-false", "", "Comma-separated status flags that must be false")
	missingMeta := fs.String("missing-meta", "", "Comma-separated meta keys that must be absent")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)

	conds := []string{}
	queryArgs := []any{}
	if *kind != "" {
		queryArgs = append(queryArgs, *kind)
		conds = append(conds, fmt.Sprintf("kind = $%d", len(queryArgs)))
	}
	if *flagTrue != "" {
		conds = append(conds, db.StatusTrueCondition(splitList(*flagTrue)))
	}
	if *flagFalse != "" {
		conds = append(conds, db.StatusFalseCondition(splitList(*flagFalse)))
	}
	if *missingMeta != "" {
		conds = append(conds, db.MetaKeyMissingCondition(splitList(*missingMeta)))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	videos, err := jctx.Store.QueryVideos(ctx, where, queryArgs...)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		fmt.Println("No videos")
		return nil
	}
	for _, v := range videos {
		status := ""
		if v.Status != nil {
			status = *v.Status
		}
		fmt.Printf("%6d  %-16s %s\n", v.ID, status, v.Title)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
