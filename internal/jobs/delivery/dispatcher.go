package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/jobs"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/internal/platform"
	"github.com/amankumarsingh77/transcodebot/internal/workspace"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

// Dispatcher hands terminal job outcomes back to the originating
// conversation and reclaims the job's workspace afterwards, whatever the
// delivery result was.
type Dispatcher struct {
	cfg        *config.Config
	logger     logger.Logger
	client     platform.Client
	workspaces *workspace.Manager
	repo       jobs.RecordRepository
	tracker    jobs.Tracker
	backoff    *Backoff
	sleep      func(time.Duration)
	evictAfter func(time.Duration, func())
}

func NewDispatcher(
	cfg *config.Config,
	logger logger.Logger,
	client platform.Client,
	workspaces *workspace.Manager,
	repo jobs.RecordRepository,
	tracker jobs.Tracker,
) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		workspaces: workspaces,
		repo:       repo,
		tracker:    tracker,
		backoff:    NewBackoff(cfg.Delivery.BackoffMin, cfg.Delivery.BackoffMax, 2),
		sleep:      time.Sleep,
		evictAfter: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// Dispatch delivers one terminal outcome. It is registered as the tracker's
// terminal callback, so it runs exactly once per job.
func (d *Dispatcher) Dispatch(job models.Job) {
	defer func() {
		d.workspaces.Release(job.JobID)
		if d.tracker != nil {
			jobID := job.JobID
			d.evictAfter(d.cfg.Pipeline.EvictionGrace, func() { d.tracker.Evict(jobID) })
		}
	}()

	ctx := context.Background()
	if d.repo != nil {
		claimed, err := d.repo.MarkDelivered(ctx, job.JobID)
		if err != nil {
			d.logger.Errorf("delivery: claim %s: %v", job.JobID, err)
		} else if !claimed {
			d.logger.Infof("delivery: %s already delivered, skipping", job.JobID)
			return
		}
	}

	if err := d.send(ctx, job); err != nil {
		d.logger.Errorf("delivery: job %s not delivered: %v", job.JobID, err)
	}
}

func (d *Dispatcher) send(ctx context.Context, job models.Job) error {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.Delivery.MaxRetries; attempt++ {
		if attempt > 0 {
			d.sleep(d.backoff.Duration(attempt))
		}

		lastErr = d.sendOnce(ctx, job)
		if lastErr == nil {
			return nil
		}
		if !platform.IsTemporary(lastErr) {
			// Permanent platform errors are logged and swallowed; they never
			// feed back into the job's own status.
			return lastErr
		}
		d.logger.Warnf("delivery: job %s attempt %d: %v", job.JobID, attempt+1, lastErr)
	}
	return lastErr
}

func (d *Dispatcher) sendOnce(ctx context.Context, job models.Job) error {
	switch job.Status {
	case models.JobStatusSucceeded:
		return d.client.SendMedia(ctx, job.Conversation, *job.Result, successCaption(job))
	case models.JobStatusFailed:
		return d.client.SendStatus(ctx, job.Conversation, failureText(job.Failure))
	case models.JobStatusCancelled:
		return d.client.SendStatus(ctx, job.Conversation, "Your request was cancelled.")
	}
	return fmt.Errorf("job %s dispatched while %s", job.JobID, job.Status)
}

func successCaption(job models.Job) string {
	if job.Result == nil || job.Result.DurationSeconds <= 0 {
		return "Here is your file."
	}
	return fmt.Sprintf("Here is your file (%s).", formatDuration(job.Result.DurationSeconds))
}

func formatDuration(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// failureText maps a failure to the message the requester sees, following
// the same error classes the bot has always reported.
func failureText(failure *models.Failure) string {
	if failure == nil {
		return "Sorry, I couldn't process this file. Please try again later."
	}
	switch failure.Kind {
	case models.FailInputTooLarge:
		return "Sorry, this file is too large to process."
	case models.FailUnsupportedOperation:
		return "Sorry, I don't support that operation."
	case models.FailTimeout:
		return "Processing timed out. Please try again."
	case models.FailResourceExhausted:
		return "The server is out of space right now. Please try again later."
	case models.FailTranscodeFailed, models.FailCorruptOutput:
		return "Sorry, I couldn't process this file. It might be corrupted or in an unsupported format."
	}
	return "Sorry, I couldn't process this file. Please try again later."
}
