package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/jobs"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/internal/platform"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

// Pipeline consumes the inbound request stream and feeds the scheduler,
// acknowledging admissions and reporting rejections back to the requester.
type Pipeline struct {
	cfg       *config.Config
	logger    logger.Logger
	scheduler jobs.Scheduler
	client    platform.Client
}

func NewPipeline(cfg *config.Config, logger logger.Logger, scheduler jobs.Scheduler, client platform.Client) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		scheduler: scheduler,
		client:    client,
	}
}

// Run blocks until ctx is done, then stops the scheduler and drains running
// jobs.
func (p *Pipeline) Run(ctx context.Context) error {
	requests, err := p.client.Requests(ctx)
	if err != nil {
		return errors.Wrap(err, "open request stream")
	}

	for req := range requests {
		p.handle(ctx, req)
	}

	p.logger.Info("pipeline: request stream closed, stopping scheduler")
	p.scheduler.Stop()
	return nil
}

func (p *Pipeline) handle(ctx context.Context, req models.JobRequest) {
	jobID, err := p.scheduler.Submit(ctx, &req)
	if err != nil {
		p.logger.Warnf("pipeline: request from %s rejected: %v", req.Requester, err)
		p.reply(ctx, req.Conversation, rejectionText(err))
		return
	}

	p.logger.Infof("pipeline: request from %s admitted as %s", req.Requester, jobID)
	p.reply(ctx, req.Conversation, "Processing your file... Please wait.")
}

// reply is best-effort: an unreachable conversation must not stall intake.
func (p *Pipeline) reply(ctx context.Context, conversation, text string) {
	if err := p.client.SendStatus(ctx, conversation, text); err != nil {
		p.logger.Warnf("pipeline: status to %s: %v", conversation, err)
	}
}

func rejectionText(err error) string {
	switch {
	case errors.Is(err, jobs.ErrInvalidRequest):
		return "Sorry, I couldn't understand that request."
	case errors.Is(err, jobs.ErrOverloaded):
		return "I'm at capacity right now. Please try again in a few minutes."
	}
	return "Sorry, something went wrong. Please try again."
}
