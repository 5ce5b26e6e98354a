package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"content-empire/manager-go/internal/config"
	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/jobs"
	"content-empire/manager-go/internal/queue"
	"content-empire/manager-go/internal/utils"
)

func Run(args []string) int {
	// Support a global --verbose flag anywhere in the argv (before or after the command).
	// This is helpful because the stdlib flag parser stops at the first non-flag argument.
	args, globalVerbose := extractGlobalVerbose(args)
	if globalVerbose {
		utils.ConfigureLogging(true)
	}

	if len(args) < 2 {
		printUsage()
		return 1
	}
	if args[1] == "-h" || args[1] == "--help" || args[1] == "help" {
		printUsage()
		return 0
	}

	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	utils.Logf("manager: config loaded env=%s hostname=%s", cfg.AppEnv, cfg.Hostname)

	cmd := args[1]
	cmdArgs := args[2:]

	// migrate manages its own pool and must work before the schema exists.
	if cmd == "migrate" {
		if err := runMigrate(ctx, cfg, cmdArgs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	store, err := db.NewStore(ctx, cfg.DBConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "db error: %v\n", err)
		return 1
	}
	defer store.Close()
	utils.Logf("manager: db connected")

	queueClient, err := queue.New(cfg.RabbitMQURL())
	if err != nil {
		fmt.Fprintf(os.Stderr, "queue error: %v\n", err)
		return 1
	}
	defer queueClient.Close()
	utils.Logf("manager: queue connected")

	jctx := jobs.JobContext{
		Config: cfg,
		Store:  store,
		Queue:  queueClient,
	}

	utils.Logf("manager: cmd=%s args=%v", cmd, cmdArgs)

	var runErr error
	switch cmd {
	case "job:PrepareMetadata":
		runErr = runPrepareMetadata(ctx, jctx, cmdArgs)
	case "job:ScheduleVideo":
		runErr = runScheduleVideo(ctx, jctx, cmdArgs)
	case "job:PublishVideo":
		runErr = runPublishVideo(ctx, jctx, cmdArgs)
	case "job:RespondComments":
		runErr = runRespondComments(ctx, jctx, cmdArgs)
	case "workflow:Run":
		runErr = runWorkflowRun(ctx, jctx, cmdArgs)
	case "workflow:Status":
		runErr = runWorkflowStatus(ctx, jctx, cmdArgs)
	case "schedule:Plan":
		runErr = runSchedulePlan(ctx, jctx, cmdArgs)
	case "schedule:List":
		runErr = runScheduleList(ctx, jctx, cmdArgs)
	case "schedule:Cancel":
		runErr = runScheduleCancel(ctx, jctx, cmdArgs)
	case "metrics:Import":
		runErr = runMetricsImport(ctx, jctx, cmdArgs)
	case "comments:Import":
		runErr = runCommentsImport(ctx, jctx, cmdArgs)
	case "comments:List":
		runErr = runCommentsList(ctx, jctx, cmdArgs)
	case "comments:Responses":
		runErr = runCommentsResponses(ctx, jctx, cmdArgs)
	case "affiliate:Add":
		runErr = runAffiliateAdd(ctx, jctx, cmdArgs)
	case "affiliate:List":
		runErr = runAffiliateList(ctx, jctx, cmdArgs)
	case "affiliate:Enable":
		runErr = runAffiliateEnable(ctx, jctx, cmdArgs, true)
	case "affiliate:Disable":
		runErr = runAffiliateEnable(ctx, jctx, cmdArgs, false)
	case "setting:Get":
		runErr = runSettingGet(ctx, jctx, cmdArgs)
	case "setting:Set":
		runErr = runSettingSet(ctx, jctx, cmdArgs)
	case "setting:Delete":
		runErr = runSettingDelete(ctx, jctx, cmdArgs)
	case "setting:List":
		runErr = runSettingList(ctx, jctx, cmdArgs)
	case "video:Add":
		runErr = runVideoAdd(ctx, jctx, cmdArgs)
	case "video:List":
		runErr = runVideoList(ctx, jctx, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		return 1
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		return 1
	}

	return 0
}

func extractGlobalVerbose(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}
	verbose := false
	out := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg == "--verbose" || arg == "-verbose":
			verbose = true
			continue
		case strings.HasPrefix(arg, "--verbose="):
			raw := strings.TrimPrefix(arg, "--verbose=")
			if parsed, err := strconv.ParseBool(raw); err == nil {
				verbose = parsed
			}
			continue
		case strings.HasPrefix(arg, "-verbose="):
			raw := strings.TrimPrefix(arg, "-verbose=")
			if parsed, err := strconv.ParseBool(raw); err == nil {
				verbose = parsed
			}
			continue
		default:
			out = append(out, arg)
		}
	}
	return out, verbose
}

func parseVideoID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid video_id: %s", args[0])
	}
	return id, nil
}

func runPrepareMetadata(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("job:PrepareMetadata", flag.ContinueOnError)
	sleep := fs.Int("sleep", 30, "Sleep time in seconds")
	queueFlag := fs.Bool("queue", false, "Process queue messages")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)
	videoID, err := parseVideoID(fs.Args())
	if err != nil {
		return err
	}
	opts := jobs.JobOptions{VideoID: videoID, Sleep: *sleep, Queue: *queueFlag}
	logJobStart("job:PrepareMetadata", opts)

	job := jobs.NewPrepareMetadataJob()
	return job.Run(ctx, jctx, opts)
}

func runScheduleVideo(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("job:ScheduleVideo", flag.ContinueOnError)
	sleep := fs.Int("sleep", 30, "Sleep time in seconds")
	queueFlag := fs.Bool("queue", false, "Process queue messages")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)
	videoID, err := parseVideoID(fs.Args())
	if err != nil {
		return err
	}
	opts := jobs.JobOptions{VideoID: videoID, Sleep: *sleep, Queue: *queueFlag}
	logJobStart("job:ScheduleVideo", opts)

	job := jobs.NewScheduleVideoJob()
	return job.Run(ctx, jctx, opts)
}

func runPublishVideo(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("job:PublishVideo", flag.ContinueOnError)
	sleep := fs.Int("sleep", 30, "Sleep time in seconds")
	queueFlag := fs.Bool("queue", false, "Process queue messages")
	info := fs.Bool("info", false, "Show the listing and prompt for a manual video ID instead of uploading")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)
	videoID, err := parseVideoID(fs.Args())
	if err != nil {
		return err
	}
	opts := jobs.JobOptions{VideoID: videoID, Sleep: *sleep, Queue: *queueFlag, Info: *info}
	logJobStart("job:PublishVideo", opts)

	job := jobs.NewPublishVideoJob()
	return job.Run(ctx, jctx, opts)
}

func runRespondComments(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("job:RespondComments", flag.ContinueOnError)
	sleep := fs.Int("sleep", 30, "Sleep time in seconds")
	queueFlag := fs.Bool("queue", false, "Process queue messages")
	verbose := fs.Bool("verbose", utils.Verbose, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	utils.ConfigureLogging(*verbose)
	videoID, err := parseVideoID(fs.Args())
	if err != nil {
		return err
	}
	opts := jobs.JobOptions{VideoID: videoID, Sleep: *sleep, Queue: *queueFlag}
	logJobStart("job:RespondComments", opts)

	job := jobs.NewRespondCommentsJob()
	return job.Run(ctx, jctx, opts)
}

func logJobStart(name string, opts jobs.JobOptions) {
	utils.Logf("start %s video_id=%d queue=%t sleep=%d info=%t", name, opts.VideoID, opts.Queue, opts.Sleep, opts.Info)
}

func printUsage() {
	fmt.Println("Usage: manager <command> [args]")
	fmt.Println("Global flags:")
	fmt.Println("  --verbose   Enable diagnostic logging (can appear before or after the command).")
	fmt.Println("Commands:")
	fmt.Println("  job:PrepareMetadata [video_id] [--sleep=N] [--queue] [--verbose]")
	fmt.Println("  job:ScheduleVideo [video_id] [--sleep=N] [--queue] [--verbose]")
	fmt.Println("  job:PublishVideo [video_id] [--sleep=N] [--queue] [--info] [--verbose]")
	fmt.Println("  job:RespondComments [video_id] [--sleep=N] [--queue] [--verbose]")
	fmt.Println("  workflow:Run <name> <video_id> [--run-id=...] [--workers=N] [--verbose]")
	fmt.Println("  workflow:Status <run_id> [--verbose]")
	fmt.Println("  schedule:Plan <video_id> [--verbose]")
	fmt.Println("  schedule:List [--verbose]")
	fmt.Println("  schedule:Cancel <schedule_id> [--verbose]")
	fmt.Println("  metrics:Import <file.json> [--verbose]")
	fmt.Println("  comments:Import <file.json> [--verbose]")
	fmt.Println("  comments:List <video_id> [--verbose]")
	fmt.Println("  comments:Responses <comment_id> [--verbose]")
	fmt.Println("  affiliate:Add --name=... --url=... [--tag=...] [--verbose]")
	fmt.Println("  affiliate:List [--all] [--verbose]")
	fmt.Println("  affiliate:Enable <name> [--verbose]")
	fmt.Println("  affiliate:Disable <name> [--verbose]")
	fmt.Println("  setting:Get <key> [--verbose]")
	fmt.Println("  setting:Set <key> <value> [--verbose]")
	fmt.Println("  setting:Delete <key> [--verbose]")
	fmt.Println("  setting:List [--verbose]")
	fmt.Println("  video:Add --title=... [--kind=video] [--file=...] [--text=...] [--topics=a,b] [--verbose]")
	fmt.Println("  video:List [--kind=...] [--flag-true=...] [--flag-false=...] [--missing-meta=...] [--verbose]")
	fmt.Println("  migrate [up] [--dir=migrations] [--dry-run] [--verbose]")
}
