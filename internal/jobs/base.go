package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"content-empire/manager-go/internal/config"
	"content-empire/manager-go/internal/db"
	"content-empire/manager-go/internal/queue"
	"content-empire/manager-go/internal/utils"
)

// ErrNotDue signals a valid message whose work cannot start yet, such as a
// publish slot still in the future. RunQueue requeues it and waits out the
// poll interval instead of treating it as a failure.
var ErrNotDue = errors.New("not due yet")

// Queue is the part of the queue client the jobs use. Satisfied by
// *queue.Client.
type Queue interface {
	Pop(queueName string) (*queue.Message, error)
	Publish(queueName string, payload []byte) error
}

type JobContext struct {
	Config config.Config
	Store  *db.Store
	Queue  Queue
}

type JobOptions struct {
	VideoID   int64
	Sleep     int
	Queue     bool
	Info      bool
	QueueOnce bool
}

type BaseJob struct {
	QueueInput      string
	QueueOutput     string
	IgnoreHostCheck bool
}

type QueuePayload struct {
	VideoID  int64  `json:"video_id"`
	Hostname string `json:"hostname"`
}

type QueueHandler func(ctx context.Context, videoID int64, hostname string) error

func (b BaseJob) RunQueue(ctx context.Context, jctx JobContext, opts JobOptions, handler QueueHandler) error {
	if jctx.Queue == nil {
		return fmt.Errorf("queue client is not configured")
	}

	sleep := opts.Sleep
	if sleep <= 0 {
		sleep = 30
	}

	for {
		msg, err := jctx.Queue.Pop(b.QueueInput)
		if err != nil {
			return err
		}
		if msg == nil {
			utils.Debug("queue empty", "queue", b.QueueInput, "sleep_s", sleep)
			time.Sleep(time.Duration(sleep) * time.Second)
			if opts.QueueOnce {
				return nil
			}
			continue
		}

		var payload QueuePayload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			utils.Warn("queue payload json decode failed", "queue", b.QueueInput, "err", err)
			_ = msg.Ack()
			continue
		}
		if payload.VideoID == 0 {
			utils.Warn("queue payload invalid (missing video_id)", "queue", b.QueueInput)
			_ = msg.Ack()
			continue
		}

		if !b.IgnoreHostCheck && payload.Hostname != "" && payload.Hostname != jctx.Config.Hostname {
			utils.Warn("queue host mismatch", "queue", b.QueueInput, "message_host", payload.Hostname, "local_host", jctx.Config.Hostname)
			_ = msg.Nack(true)
			time.Sleep(time.Duration(sleep) * time.Second)
			continue
		}

		if err := handler(ctx, payload.VideoID, payload.Hostname); err != nil {
			if errors.Is(err, ErrNotDue) {
				// Not a failure: put the message back and wait out the
				// poll interval so the worker does not spin on it.
				utils.Debug("queue message not due", "queue", b.QueueInput, "video_id", payload.VideoID, "err", err)
				_ = msg.Nack(true)
				time.Sleep(time.Duration(sleep) * time.Second)
				if opts.QueueOnce {
					return nil
				}
				continue
			}
			utils.Error("queue handler error", "queue", b.QueueInput, "video_id", payload.VideoID, "err", err)
			_ = msg.Nack(true)
			continue
		}
		_ = msg.Ack()
	}
}

// publishNext pushes the video onto the job's output queue so the next
// stage picks it up.
func (b BaseJob) publishNext(jctx JobContext, videoID int64) error {
	if b.QueueOutput == "" || jctx.Queue == nil {
		return nil
	}
	payload, err := json.Marshal(QueuePayload{VideoID: videoID, Hostname: jctx.Config.Hostname})
	if err != nil {
		return err
	}
	return jctx.Queue.Publish(b.QueueOutput, payload)
}
